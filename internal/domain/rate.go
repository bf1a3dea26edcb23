package domain

import "fmt"

// Speech rate range shared by every voice. 0 is the engine's normal pace.
const (
	MinRate     = -10
	MaxRate     = 10
	DefaultRate = 3
)

// ValidateRate reports whether rate is inside [MinRate, MaxRate].
func ValidateRate(rate int) error {
	if rate < MinRate || rate > MaxRate {
		return fmt.Errorf("speech rate %d out of range [%d, %d]", rate, MinRate, MaxRate)
	}
	return nil
}
