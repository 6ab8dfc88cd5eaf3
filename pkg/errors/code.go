package errors

// Service codes (AA).
const (
	ServiceCommon    = 0
	ServiceAssistant = 21
)

// Category codes (BB).
const (
	CategorySuccess    = 0
	CategoryRequest    = 1
	CategoryAuth       = 2
	CategoryPermission = 3
	CategoryResource   = 4
	CategoryConflict   = 5
	CategoryRateLimit  = 6
	CategoryInternal   = 7
	CategoryDatabase   = 8
	CategoryCache      = 9
	CategoryNetwork    = 10
	CategoryTimeout    = 11
	CategoryConfig     = 12
)

// MakeCode builds an AABBCCC error code.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode splits an AABBCCC error code.
func ParseCode(code int) (service, category, sequence int) {
	return code / 100000, (code / 1000) % 100, code % 1000
}

// GetService returns the AA part of code.
func GetService(code int) int {
	s, _, _ := ParseCode(code)
	return s
}

// GetCategory returns the BB part of code.
func GetCategory(code int) int {
	_, c, _ := ParseCode(code)
	return c
}

// GetSequence returns the CCC part of code.
func GetSequence(code int) int {
	_, _, s := ParseCode(code)
	return s
}
