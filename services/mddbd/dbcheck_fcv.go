package main

import "fmt"

// FeatureCompatibilityVersion is the daemon's current feature-compatibility
// version. dbcheck requires at least minSupportedFCV (spec.md §6: "the
// server's FCV must be >= 3.6").
const FeatureCompatibilityVersion = "7.0"

const minSupportedFCV = "3.6"

// ErrFCVTooLow is a synchronous planning error returned when the daemon's
// FCV predates dbcheck support.
var ErrFCVTooLow = fmt.Errorf("dbcheck: feature compatibility version below %s", minSupportedFCV)

// CheckFCV rejects the command if the running daemon's FCV is below the
// minimum dbcheck supports. mddb carries a single fixed FCV rather than a
// settable one (it has no online upgrade path), so this is a constant
// comparison rather than a live cluster read.
func CheckFCV() error {
	if compareFCV(FeatureCompatibilityVersion, minSupportedFCV) < 0 {
		return ErrFCVTooLow
	}
	return nil
}

// compareFCV compares two "major.minor" version strings numerically.
func compareFCV(a, b string) int {
	aMaj, aMin := splitFCV(a)
	bMaj, bMin := splitFCV(b)
	if aMaj != bMaj {
		return aMaj - bMaj
	}
	return aMin - bMin
}

func splitFCV(v string) (major, minor int) {
	_, _ = fmt.Sscanf(v, "%d.%d", &major, &minor)
	return
}
