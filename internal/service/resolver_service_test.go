package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/correspondence-backend/internal/model"
	"github.com/civicdesk/correspondence-backend/internal/service"
)

func TestResolveKnownSender(t *testing.T) {
	constituents := newFakeConstituentRepo()
	id := uuid.New()
	constituents.byEmail["priya@example.com"] = &model.Constituent{ID: id}
	svc := &service.ResolverService{Constituents: constituents}

	res, err := svc.Resolve(context.Background(), "priya@example.com", "some body")

	require.NoError(t, err)
	assert.Equal(t, model.BucketKnown, res.Bucket)
	require.NotNil(t, res.ConstituentID)
	assert.Equal(t, id, *res.ConstituentID)
}

func TestResolvePostcodeInBody(t *testing.T) {
	svc := &service.ResolverService{Constituents: newFakeConstituentRepo()}

	res, err := svc.Resolve(context.Background(), "unknown@example.net",
		"I'm a constituent, my postcode is SW1A 1AA, please help.")

	require.NoError(t, err)
	assert.Equal(t, model.BucketHasAddress, res.Bucket)
	assert.Equal(t, "SW1A 1AA", res.DetectedAddress)
}

func TestResolveStreetAddressInBody(t *testing.T) {
	svc := &service.ResolverService{Constituents: newFakeConstituentRepo()}

	res, err := svc.Resolve(context.Background(), "unknown@example.net",
		"I live at 12 Mill Lane and have lived there for years.")

	require.NoError(t, err)
	assert.Equal(t, model.BucketHasAddress, res.Bucket)
	assert.Equal(t, "12 Mill Lane", res.DetectedAddress)
}

func TestResolveNoSignal(t *testing.T) {
	svc := &service.ResolverService{Constituents: newFakeConstituentRepo()}

	res, err := svc.Resolve(context.Background(), "unknown@example.net",
		"I just wanted to share my opinion on the budget.")

	require.NoError(t, err)
	assert.Equal(t, model.BucketNoAddress, res.Bucket)
	assert.Empty(t, res.DetectedAddress)
}
