package klt

// Fault is the outcome of tracking one feature in one image.
type Fault int

const (
	// FaultSuccess means the feature converged and its position was updated.
	FaultSuccess Fault = iota
	// FaultOutOfBounds means the feature left the allowed region of the image.
	FaultOutOfBounds
	// FaultFailed means the gradient matrix was too close to singular.
	FaultFailed
	// FaultDrifted means the estimate moved further than the template side length.
	FaultDrifted
	// FaultLargeError means the final patch differs too much from the description.
	FaultLargeError
)

var faultNames = [...]string{
	FaultSuccess:     "SUCCESS",
	FaultOutOfBounds: "OUT_OF_BOUNDS",
	FaultFailed:      "FAILED",
	FaultDrifted:     "DRIFTED",
	FaultLargeError:  "LARGE_ERROR",
}

// Faults lists every fault value in declaration order.
func Faults() []Fault {
	return []Fault{FaultSuccess, FaultOutOfBounds, FaultFailed, FaultDrifted, FaultLargeError}
}

func (f Fault) String() string {
	if f < 0 || int(f) >= len(faultNames) {
		return "UNKNOWN"
	}
	return faultNames[f]
}

// MarshalText encodes the fault by name.
func (f Fault) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}
