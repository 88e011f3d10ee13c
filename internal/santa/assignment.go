package santa

import (
	"fmt"
	"math/rand/v2"
)

// RandomSource draws uniformly distributed integers in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	IntN(n int) int
}

type globalRandom struct{}

// NewRandomSource returns a RandomSource backed by the runtime's shared generator.
func NewRandomSource() RandomSource {
	return globalRandom{}
}

func (globalRandom) IntN(n int) int {
	return rand.IntN(n)
}

// deriveAssignment maps every recipient to a sender such that the mapping is a
// permutation of recipients with no fixed point.
//
// Senders are drawn at random from the pool of identities not yet used as a
// sender, excluding the recipient itself. The pool always holds exactly the
// recipients not processed yet, so only the final recipient can find the pool
// reduced to itself. In that case it steals the sender of a random earlier
// recipient, which in turn gets the final recipient as its sender. The stolen
// sender was drawn while the final recipient was still pooled, so neither
// side of the swap becomes a fixed point. The result is deliberately
// nondeterministic.
func deriveAssignment(recipients []UserID, random RandomSource) (map[UserID]UserID, error) {
	if len(recipients) < 2 {
		return nil, ErrInsufficientParticipants
	}

	pool := make([]UserID, len(recipients))
	copy(pool, recipients)
	seen := make(map[UserID]struct{}, len(recipients))
	for _, recipient := range recipients {
		if _, duplicate := seen[recipient]; duplicate {
			return nil, fmt.Errorf("santa: duplicate participant %q", recipient)
		}
		seen[recipient] = struct{}{}
	}

	senders := make(map[UserID]UserID, len(recipients))
	processed := make([]UserID, 0, len(recipients))
	for _, recipient := range recipients {
		candidates := make([]int, 0, len(pool))
		for index, identity := range pool {
			if identity != recipient {
				candidates = append(candidates, index)
			}
		}

		if len(candidates) > 0 {
			picked := candidates[random.IntN(len(candidates))]
			senders[recipient] = pool[picked]
			pool = append(pool[:picked], pool[picked+1:]...)
		} else {
			exchange := processed[random.IntN(len(processed))]
			senders[recipient] = senders[exchange]
			senders[exchange] = recipient
			pool = pool[:0]
		}
		processed = append(processed, recipient)
	}

	return senders, nil
}

// verifyDerangement checks the postcondition of deriveAssignment.
func verifyDerangement(recipients []UserID, senders map[UserID]UserID) error {
	if len(senders) != len(recipients) {
		return fmt.Errorf("santa: %d senders for %d recipients", len(senders), len(recipients))
	}
	members := make(map[UserID]struct{}, len(recipients))
	for _, recipient := range recipients {
		members[recipient] = struct{}{}
	}
	used := make(map[UserID]struct{}, len(recipients))
	for _, recipient := range recipients {
		sender, ok := senders[recipient]
		if !ok {
			return fmt.Errorf("santa: recipient %q has no sender", recipient)
		}
		if sender == recipient {
			return fmt.Errorf("santa: recipient %q assigned to itself", recipient)
		}
		if _, member := members[sender]; !member {
			return fmt.Errorf("santa: sender %q is not a participant", sender)
		}
		if _, duplicate := used[sender]; duplicate {
			return fmt.Errorf("santa: sender %q assigned twice", sender)
		}
		used[sender] = struct{}{}
	}
	return nil
}
