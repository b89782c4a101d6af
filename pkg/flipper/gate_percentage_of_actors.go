package flipper

import (
	"hash/crc32"

	"github.com/shopspring/decimal"
)

// maxCRC32 is 2^32 - 1, the normalizing denominator of the scoring formula.
var maxCRC32 = decimal.NewFromInt(4294967295)

// percentageOfActorsGate deterministically buckets each actor into [0, 100]
// by hashing "<feature><actor id>" with CRC-32 (IEEE), so the same
// feature/actor pair opens or closes identically across processes, restarts,
// and adapters.
//
// The score is computed in decimal rather than float64: CRC32/float64
// division can round differently across architectures for values near a
// percentage boundary, which would silently break the "identical across
// processes" guarantee this gate exists to provide.
type percentageOfActorsGate struct{}

func (percentageOfActorsGate) Name() GateName     { return GatePercentageOfActors }
func (percentageOfActorsGate) DataType() DataType { return DataTypeInteger }

func (percentageOfActorsGate) IsDefault(values GateValues) bool {
	return values.PercentageOfActors == 0
}

func (percentageOfActorsGate) Open(values GateValues, ctx evalContext) bool {
	id := actorID(ctx.actor)
	if id == "" {
		return false
	}
	if values.PercentageOfActors >= 100 {
		// Special-cased: the actor whose CRC32 happens to equal
		// 0xFFFFFFFF scores exactly 100, and LessThan(100) would exclude
		// it even though the rollout is meant to cover every actor.
		return true
	}
	return percentageOfActorsScore(ctx.featureName, id).LessThan(decimal.NewFromInt(int64(values.PercentageOfActors)))
}

// percentageOfActorsScore computes the deterministic rollout score for a
// feature/actor pair. It is a package-level function (not a method) so
// callers in this package — e.g. a distribution smoke test — can verify
// bucket spread without constructing a whole Feature.
func percentageOfActorsScore(featureName, actorID string) decimal.Decimal {
	sum := crc32.ChecksumIEEE([]byte(featureName + actorID))
	return decimal.NewFromInt(int64(sum)).DivRound(maxCRC32, 10).Mul(decimal.NewFromInt(100))
}
