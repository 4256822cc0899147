package bft

import (
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

var (
	// ErrEmptyValidatorSet is returned when a validator set is created without validators.
	ErrEmptyValidatorSet = errors.New("validator set is empty")
	// ErrNonPositivePower is returned for a validator whose power is zero or negative.
	ErrNonPositivePower = errors.New("validator power must be positive")
	// ErrPowerTooLarge is returned for a validator whose power does not fit in 256 bits.
	ErrPowerTooLarge = errors.New("validator power exceeds 256 bits")
	// ErrDuplicateValidator is returned when two validators share the same key.
	ErrDuplicateValidator = errors.New("duplicate validator key")
)

// Validator is a member of a validator set with its voting power.
type Validator struct {
	key   PublicKey
	power *big.Int
}

// NewValidator returns a validator with the given key and power.
// The power must be in the range (0, 2^256).
func NewValidator(key PublicKey, power *big.Int) (Validator, error) {
	if power == nil || power.Sign() <= 0 {
		return Validator{}, fmt.Errorf("validator %v: %w", key, ErrNonPositivePower)
	}
	if power.BitLen() > 256 {
		return Validator{}, fmt.Errorf("validator %v: %w", key, ErrPowerTooLarge)
	}
	return Validator{key: key, power: new(big.Int).Set(power)}, nil
}

// MustNewValidator is like NewValidator but panics on error.
// It is intended for tests and static configurations.
func MustNewValidator(key PublicKey, power int64) Validator {
	v, err := NewValidator(key, big.NewInt(power))
	if err != nil {
		panic(err)
	}
	return v
}

// Key returns the validator's public key.
func (v Validator) Key() PublicKey {
	return v.key
}

// Power returns a copy of the validator's voting power.
func (v Validator) Power() *big.Int {
	return new(big.Int).Set(v.power)
}

func (v Validator) String() string {
	return fmt.Sprintf("%v(%s)", v.key, v.power)
}

// ValidatorSet is an immutable snapshot of the validators of an epoch.
// Validators are kept sorted by their raw key bytes.
type ValidatorSet struct {
	validators []Validator
	index      map[PublicKey]int
	totalPower *big.Int
}

// NewValidatorSet creates a validator set. All violations are reported together.
func NewValidatorSet(validators ...Validator) (*ValidatorSet, error) {
	if len(validators) == 0 {
		return nil, ErrEmptyValidatorSet
	}

	var err error
	set := &ValidatorSet{
		validators: make([]Validator, 0, len(validators)),
		index:      make(map[PublicKey]int, len(validators)),
		totalPower: new(big.Int),
	}
	seen := make(map[PublicKey]struct{}, len(validators))
	for _, v := range validators {
		if _, ok := seen[v.key]; ok {
			err = multierr.Append(err, fmt.Errorf("validator %v: %w", v.key, ErrDuplicateValidator))
			continue
		}
		seen[v.key] = struct{}{}
		// catches zero-value validators that bypassed NewValidator
		if v.power == nil || v.power.Sign() <= 0 {
			err = multierr.Append(err, fmt.Errorf("validator %v: %w", v.key, ErrNonPositivePower))
			continue
		}
		set.validators = append(set.validators, v)
		set.totalPower.Add(set.totalPower, v.power)
	}
	if err != nil {
		return nil, err
	}

	slices.SortFunc(set.validators, func(a, b Validator) int {
		return a.key.Compare(b.key)
	})
	for i, v := range set.validators {
		set.index[v.key] = i
	}
	return set, nil
}

// Len returns the number of validators.
func (s *ValidatorSet) Len() int {
	return len(s.validators)
}

// Validators returns the validators ordered by key.
func (s *ValidatorSet) Validators() []Validator {
	return slices.Clone(s.validators)
}

// At returns the i'th validator in key order.
func (s *ValidatorSet) At(i int) Validator {
	return s.validators[i]
}

// Keys returns the validator keys in key order.
func (s *ValidatorSet) Keys() []PublicKey {
	keys := make([]PublicKey, len(s.validators))
	for i, v := range s.validators {
		keys[i] = v.key
	}
	return keys
}

// Contains reports whether a validator with the given key is in the set.
func (s *ValidatorSet) Contains(key PublicKey) bool {
	_, ok := s.index[key]
	return ok
}

// PowerOf returns the power of the validator with the given key, or zero if it is not a member.
func (s *ValidatorSet) PowerOf(key PublicKey) *big.Int {
	i, ok := s.index[key]
	if !ok {
		return new(big.Int)
	}
	return s.validators[i].Power()
}

// TotalPower returns the sum of all voting power in the set.
func (s *ValidatorSet) TotalPower() *big.Int {
	return new(big.Int).Set(s.totalPower)
}

// QuorumPower returns the voting power needed to form a quorum in this set.
func (s *ValidatorSet) QuorumPower() *big.Int {
	return QuorumPower(s.totalPower)
}

func (s *ValidatorSet) String() string {
	var sb strings.Builder
	sb.WriteString("[ ")
	for _, v := range s.validators {
		sb.WriteString(v.String())
		sb.WriteString(" ")
	}
	sb.WriteString("]")
	return sb.String()
}
