// Package testutil provides helper methods that are useful for implementing tests.
package testutil

import (
	"crypto/sha256"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/relab/bft"
	"github.com/relab/bft/internal/mocks"
)

// Key returns a deterministic public key. Keys compare in the order of their ids.
func Key(id uint8) bft.PublicKey {
	return bft.PublicKey([]byte{0x02, id})
}

// ValidatorSet returns a validator set where validator i+1 has powers[i].
func ValidatorSet(t testing.TB, powers ...int64) *bft.ValidatorSet {
	t.Helper()
	validators := make([]bft.Validator, len(powers))
	for i, power := range powers {
		validators[i] = bft.MustNewValidator(Key(uint8(i+1)), power)
	}
	set, err := bft.NewValidatorSet(validators...)
	if err != nil {
		t.Fatalf("failed to create validator set: %v", err)
	}
	return set
}

// GenesisQC returns the genesis QC of an epoch.
func GenesisQC(epoch bft.Epoch) bft.QuorumCert {
	return bft.NewQuorumCert(epoch, bft.GenesisView, sha256.Sum256(epoch.ToBytes()))
}

// QC returns a QC for the given epoch and view.
func QC(epoch bft.Epoch, view bft.View) bft.QuorumCert {
	return bft.NewQuorumCert(epoch, view, sha256.Sum256(append(epoch.ToBytes(), view.ToBytes()...)))
}

// CreateMockSigner returns a mock signer that signs any hash with the key's bytes.
func CreateMockSigner(t *testing.T, ctrl *gomock.Controller, key bft.PublicKey) *mocks.MockHashSigner {
	t.Helper()

	signer := mocks.NewMockHashSigner(ctrl)
	signer.
		EXPECT().
		Sign(gomock.Any()).
		AnyTimes().
		DoAndReturn(func(hash bft.Hash) ([]byte, error) {
			return append(key.Bytes(), hash[:]...), nil
		})

	return signer
}

// CreateMockCommandGenerator returns a mock command generator that proposes the given command.
func CreateMockCommandGenerator(t *testing.T, ctrl *gomock.Controller, cmd bft.Command) *mocks.MockNextCommandGenerator {
	t.Helper()

	gen := mocks.NewMockNextCommandGenerator(ctrl)
	gen.
		EXPECT().
		GenerateNextCommand(gomock.Any(), gomock.Any()).
		AnyTimes().
		Return(cmd)

	return gen
}
