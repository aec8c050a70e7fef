// Package status defines the shared status code space used by the cobs, crc,
// and transport packages. The three layers reserve disjoint numeric ranges so
// a caller inspecting a single status byte can tell which layer produced it
// without unwrapping anything.
package status

import "errors"

// Code is a dense, stable numeric status code. Each layer (COBS, CRC,
// Transfer) owns a disjoint range so the origin of a failure can be
// determined from the code alone.
type Code uint8

const (
	// COBS codes occupy 11-50.
	COBSStandby                    Code = 11
	COBSPayloadEncoded             Code = 12
	COBSPayloadDecoded             Code = 13
	COBSEncodePayloadTooSmall      Code = 14
	COBSEncodePayloadTooLarge      Code = 15
	COBSEncodeBufferTooSmall       Code = 16
	COBSEncodeAlreadyEncoded       Code = 17
	COBSDecodePacketTooSmall       Code = 18
	COBSDecodePacketTooLarge       Code = 19
	COBSDecodeBufferTooSmall       Code = 20
	COBSDecodeAlreadyDecoded       Code = 21
	COBSDelimiterTooEarly          Code = 22
	COBSDelimiterNotFound          Code = 23

	// CRC codes occupy 51-100.
	CRCStandby               Code = 51
	CRCChecksumCalculated    Code = 52
	CRCComputeBufferTooSmall Code = 53
	CRCAppendBufferTooSmall  Code = 54
	CRCExtractBufferTooSmall Code = 55

	// Transfer codes occupy 101-150.
	TransferStandby              Code = 101
	TransferWritePayloadTooSmall Code = 102
	TransferReadPayloadTooSmall  Code = 103
	TransferPacketSent           Code = 104
	TransferNoBytesToParse       Code = 105
	TransferStartByteNotFound    Code = 106
	TransferPacketTimeout        Code = 107
	TransferPacketOutOfBuffer    Code = 108
	TransferPostambleTimeout     Code = 109
	TransferCRCCheckFailed       Code = 110
	TransferPayloadDecoded       Code = 111
	TransferInvalidConfig        Code = 112
)

// Error is the error type returned by every fallible operation in this
// module. It carries the originating layer's status Code alongside a
// human-readable message and an optional wrapped cause, so that
// errors.As/errors.Is continue to work while the numeric code remains
// available for callers that want to switch on it directly.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// CodeOf extracts the status Code carried by err, if any.
func CodeOf(err error) (Code, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}
