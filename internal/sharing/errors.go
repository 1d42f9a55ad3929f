package sharing

import "errors"

var (
	ErrNotShareable       = errors.New("this resource type cannot be shared")
	ErrOwnerOnly          = errors.New("only the owner can do this")
	ErrInvalidKey         = errors.New("invalid share key format")
	ErrKeyNotFound        = errors.New("share key not found")
	ErrKeyExhausted       = errors.New("could not generate a unique share key")
	ErrAlreadyOwner       = errors.New("you already own this resource")
	ErrAlreadyMember      = errors.New("you already have access to this resource")
	ErrAlreadyShared      = errors.New("the user already has access to this resource")
	ErrCannotInviteOwner  = errors.New("the owner cannot be invited")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrImmutableGrant     = errors.New("grant not found or is creator")
	ErrNoGrant            = errors.New("you are not a member of this resource")
	ErrCreatorCannotLeave = errors.New("the creator cannot leave the resource")
	ErrInvalidToken       = errors.New("invalid or inactive invitation")
	ErrInvitationUsed     = errors.New("invitation already accepted")
	ErrInvitationExpired  = errors.New("invitation expired")
	ErrEmailMismatch      = errors.New("the invitation was sent to another email")
)
