package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Apply-engine rule failures. Every one of these is recoverable: the
	// command fails, the pass keeps going.
	ErrContainerNotFound       = "E_CONTAINER_NOT_FOUND"
	ErrSlotOutOfBounds         = "E_SLOT_OUT_OF_BOUNDS"
	ErrSourceSlotEmpty         = "E_SOURCE_SLOT_EMPTY"
	ErrZeroAmount              = "E_ZERO_AMOUNT"
	ErrDestinationFull         = "E_DESTINATION_FULL"
	ErrIncompatibleDestination = "E_INCOMPATIBLE_DESTINATION"

	ErrBadRequest = "E_BAD_REQUEST"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:         {},
	ErrContainerNotFound:       {},
	ErrSlotOutOfBounds:         {},
	ErrSourceSlotEmpty:         {},
	ErrZeroAmount:              {},
	ErrDestinationFull:         {},
	ErrIncompatibleDestination: {},
	ErrBadRequest:              {},
	ErrInternal:                {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
