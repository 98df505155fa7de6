package domain

import "errors"

var (
	// ErrCrypto is returned when a QR payload cannot be encrypted or decrypted
	ErrCrypto = errors.New("crypto failure")

	// ErrStorage is returned when a persistence operation fails unexpectedly
	ErrStorage = errors.New("storage failure")

	// ErrDuplicateSerial is returned when registering an equipment whose serial number already exists
	ErrDuplicateSerial = errors.New("serial number already registered")

	// ErrHolderNotFound is returned when a holder referenced at registration does not exist
	ErrHolderNotFound = errors.New("holder not found")

	// ErrTokenNotFound is returned when revoking a token that does not exist
	ErrTokenNotFound = errors.New("token not found")
)
