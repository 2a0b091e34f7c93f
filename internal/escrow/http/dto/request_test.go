package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscrowRequest_Validate(t *testing.T) {
	t.Run("Success_Minimal", func(t *testing.T) {
		req := EscrowRequest{Secret: "s3cret"}
		assert.NoError(t, req.Validate())
	})

	t.Run("Error_LongHostname", func(t *testing.T) {
		req := EscrowRequest{Secret: "s3cret", Hostname: strings.Repeat("a", maxHostnameLength+1)}
		err := req.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "hostname")
	})

	t.Run("Error_LongOwner", func(t *testing.T) {
		req := EscrowRequest{Secret: "s3cret", Owners: []string{"bob", strings.Repeat("a", maxOwnerLength+1)}}
		err := req.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "owners")
	})

	t.Run("FormatsAreLeftToTheUseCase", func(t *testing.T) {
		req := EscrowRequest{Secret: "s3cret", Hostname: "mac 01.example.com", Owners: []string{"alice@"}}
		assert.NoError(t, req.Validate())
	})

	t.Run("Error_TooManyOwners", func(t *testing.T) {
		req := EscrowRequest{Secret: "s3cret", Owners: make([]string, maxOwners+1)}
		assert.Error(t, req.Validate())
	})

	t.Run("Error_TooManyMetadataKeys", func(t *testing.T) {
		metadata := make(map[string]string, maxMetadataKeys+1)
		for i := range maxMetadataKeys + 1 {
			metadata[strings.Repeat("k", i+1)] = "v"
		}
		req := EscrowRequest{Secret: "s3cret", Metadata: metadata}
		assert.Error(t, req.Validate())
	})
}

func TestChangeOwnersRequest_Validate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		req := ChangeOwnersRequest{Owners: []string{"bob", "carol@example.com"}}
		assert.NoError(t, req.Validate())
	})

	t.Run("EmptyIsLeftToTheUseCase", func(t *testing.T) {
		req := ChangeOwnersRequest{}
		assert.NoError(t, req.Validate())
	})

	t.Run("Error_LongOwner", func(t *testing.T) {
		req := ChangeOwnersRequest{Owners: []string{"bob", strings.Repeat("a", maxOwnerLength+1)}}
		assert.Error(t, req.Validate())
	})
}
