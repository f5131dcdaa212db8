package bookmark

import (
	"context"
	"fmt"
)

// SaveAll saves tokens[i] to locations[i] for every i. Mismatched lengths fail
// with ErrArityMismatch before any location is touched. Otherwise every pair is
// attempted and failures are returned together as a *BatchError.
func SaveAll(ctx context.Context, s Store, tokens []Token, locations []string) error {
	if len(tokens) != len(locations) {
		return storeErr("save-all", "", ErrArityMismatch,
			fmt.Errorf("%d tokens, %d locations", len(tokens), len(locations)))
	}
	var failed []*ItemError
	for i := range tokens {
		if err := s.Save(ctx, tokens[i], locations[i]); err != nil {
			failed = append(failed, &ItemError{Index: i, Location: locations[i], Err: err})
		}
	}
	return newBatchError(failed)
}

// Loaded is one result of LoadAll.
type Loaded struct {
	Token Token
	Found bool
}

// LoadAll loads locations[i] expecting wants[i]. The result slice always has
// one entry per location; entries for failed pairs are zero.
func LoadAll(ctx context.Context, s Store, wants []Kind, locations []string) ([]Loaded, error) {
	if len(wants) != len(locations) {
		return nil, storeErr("load-all", "", ErrArityMismatch,
			fmt.Errorf("%d kinds, %d locations", len(wants), len(locations)))
	}
	out := make([]Loaded, len(locations))
	var failed []*ItemError
	for i := range locations {
		t, ok, err := s.Load(ctx, locations[i], wants[i])
		if err != nil {
			failed = append(failed, &ItemError{Index: i, Location: locations[i], Err: err})
			continue
		}
		out[i] = Loaded{Token: t, Found: ok}
	}
	return out, newBatchError(failed)
}
