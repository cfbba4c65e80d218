package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonFor(t *testing.T) {
	assert.Equal(t, ReasonExpired, ReasonFor(ErrTokenExpired))
	assert.Equal(t, ReasonAlreadyUsed, ReasonFor(ErrTokenAlreadyUsed))
	assert.Equal(t, ReasonRevoked, ReasonFor(ErrTokenRevoked))

	// Wrapped errors still resolve.
	wrapped := fmt.Errorf("%w: booking bkg_1 is pending", ErrBookingNotConfirmed)
	assert.Equal(t, ReasonBookingState, ReasonFor(wrapped))

	// Infrastructure errors and empty query results carry no reason code.
	assert.Empty(t, ReasonFor(ErrStoreUnavailable))
	assert.Empty(t, ReasonFor(ErrNoEntries))
	assert.Empty(t, ReasonFor(errors.New("random")))
}

func TestDisplayMessage(t *testing.T) {
	assert.Equal(t, "Ticket has expired", DisplayMessage(ReasonExpired))
	assert.Equal(t, "Ticket was already used", DisplayMessage(ReasonAlreadyUsed))

	// Unknown reasons fall back to a generic gate message.
	assert.Equal(t, "Ticket could not be validated. Please try again.", DisplayMessage("SOMETHING_ELSE"))
}

func TestIsBusinessOutcome(t *testing.T) {
	assert.True(t, IsBusinessOutcome(ErrTokenExpired))
	assert.True(t, IsBusinessOutcome(ErrEventNotActive))
	assert.False(t, IsBusinessOutcome(ErrStoreUnavailable))
	assert.False(t, IsBusinessOutcome(ErrNoEntries))
	assert.False(t, IsBusinessOutcome(errors.New("boom")))
}
