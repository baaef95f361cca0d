package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/codecrack-oj/apiserver/types"
)

const maxTestcaseSetBytes = 64 << 20

// storeTestcaseSet validates the cases, writes them to object storage
// as a JSON document keyed by its own SHA-256, and returns the
// reference to embed in the problem row. Content addressing makes the
// stored document immutable: editing a problem produces a new key, and
// judgments that already hold the old reference are unaffected.
func (s *ProblemService) storeTestcaseSet(ctx context.Context, cases []types.TestCase) (types.TestcaseSetRef, error) {
	if len(cases) == 0 {
		return types.TestcaseSetRef{}, ErrNoTestcases
	}

	visible, hidden := 0, 0
	for _, tc := range cases {
		if tc.Visible {
			visible++
		} else {
			hidden++
		}
	}
	if visible == 0 {
		return types.TestcaseSetRef{}, ErrNoVisibleTestcases
	}

	set := types.TestcaseSet{Cases: cases}
	data, err := json.Marshal(set)
	if err != nil {
		return types.TestcaseSetRef{}, err
	}

	hash := sha256.Sum256(data)
	digest := hex.EncodeToString(hash[:])
	key := fmt.Sprintf("testcase-sets/%s.json", digest)

	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return types.TestcaseSetRef{}, fmt.Errorf("store testcase set: %w", err)
	}

	return types.TestcaseSetRef{
		ObjectKey:    key,
		SHA256:       digest,
		VisibleCount: visible,
		HiddenCount:  hidden,
	}, nil
}

// LoadTestcaseSet fetches and decodes the test case document referenced
// by a problem. The returned set is a snapshot owned by the caller.
func (s *ProblemService) LoadTestcaseSet(ctx context.Context, ref types.TestcaseSetRef) (types.TestcaseSet, error) {
	reader, err := s.storage.Get(ctx, ref.ObjectKey)
	if err != nil {
		return types.TestcaseSet{}, fmt.Errorf("load testcase set: %w", err)
	}
	defer reader.Close()

	var set types.TestcaseSet
	if err := json.NewDecoder(io.LimitReader(reader, maxTestcaseSetBytes)).Decode(&set); err != nil {
		return types.TestcaseSet{}, fmt.Errorf("decode testcase set: %w", err)
	}
	return set, nil
}
