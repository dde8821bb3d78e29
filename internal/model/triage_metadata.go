package model

import "encoding/json"

// TriageMetadata carries AI-suggested classification fields for a message.
// The suggestion payload is untrusted input: the known fields are the subset
// the triage state machine validates against, and any additional keys the
// classifier emits are preserved verbatim in Extra so that additive fields
// survive a round trip through the database.
type TriageMetadata struct {
	EmailType          string  `json:"email_type,omitempty"`
	Confidence         float64 `json:"confidence,omitempty"`
	IsCampaign         bool    `json:"is_campaign,omitempty"`
	SuggestedCaseTitle string  `json:"suggested_case_title,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownMetadataKeys = map[string]bool{
	"email_type":           true,
	"confidence":           true,
	"is_campaign":          true,
	"suggested_case_title": true,
}

func (m TriageMetadata) MarshalJSON() ([]byte, error) {
	type known TriageMetadata
	base, err := json.Marshal(known(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return base, nil
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if !knownMetadataKeys[k] {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func (m *TriageMetadata) UnmarshalJSON(data []byte) error {
	type known TriageMetadata
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}
	*m = TriageMetadata(k)

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		if knownMetadataKeys[key] {
			continue
		}
		if m.Extra == nil {
			m.Extra = map[string]json.RawMessage{}
		}
		m.Extra[key] = val
	}
	return nil
}
