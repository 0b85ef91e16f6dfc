package claim

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/document"
)

type stubClock struct {
	now time.Time
}

func (s stubClock) Now() time.Time {
	return s.now
}

// tickingClock は呼び出しごとに 1 分進みます。
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type fakeRepo struct {
	mu          sync.Mutex
	claims      map[string]*Claim
	transitions []*Transition
	seq         int

	createErr error
	// beforeUpdate は Update の CAS 判定直前に呼ばれます。
	beforeUpdate func(stored *Claim)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{claims: make(map[string]*Claim)}
}

func (r *fakeRepo) Create(_ context.Context, c *Claim) (*Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return nil, r.createErr
	}
	r.seq++
	stored := cloneClaim(c)
	stored.ID = "claim-" + strconv.Itoa(r.seq)
	stored.Version = 1
	r.claims[stored.ID] = stored
	return cloneClaim(stored), nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[id]
	if !ok {
		return nil, ErrClaimNotFound
	}
	return cloneClaim(c), nil
}

func (r *fakeRepo) Update(_ context.Context, c *Claim) (*Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.claims[c.ID]
	if !ok {
		return nil, ErrClaimNotFound
	}
	if r.beforeUpdate != nil {
		r.beforeUpdate(stored)
	}
	if stored.Version != c.Version {
		return nil, ErrConcurrentUpdate
	}

	next := cloneClaim(c)
	next.Version = stored.Version + 1
	r.claims[c.ID] = next
	return cloneClaim(next), nil
}

func (r *fakeRepo) List(_ context.Context, filter ListClaimsFilter) ([]*Claim, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*Claim, 0, len(r.claims))
	for _, c := range r.claims {
		if filter.LecturerID != nil && c.LecturerID != *filter.LecturerID {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, c.Status) {
			continue
		}
		matched = append(matched, cloneClaim(c))
	}
	sortNewestFirst(matched)

	if filter.Offset >= len(matched) {
		return []*Claim{}, "", nil
	}
	matched = matched[filter.Offset:]

	var next string
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
		next = strconv.Itoa(filter.Offset + filter.Limit)
	}
	return matched, next, nil
}

func (r *fakeRepo) ListAll(_ context.Context) ([]*Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*Claim, 0, len(r.claims))
	for _, c := range r.claims {
		all = append(all, cloneClaim(c))
	}
	sortNewestFirst(all)
	return all, nil
}

func (r *fakeRepo) AppendTransition(_ context.Context, t *Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copy := *t
	r.transitions = append(r.transitions, &copy)
	return nil
}

func (r *fakeRepo) ListTransitions(_ context.Context, claimID string) ([]*Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := make([]*Transition, 0)
	for _, t := range r.transitions {
		if t.ClaimID == claimID {
			copy := *t
			history = append(history, &copy)
		}
	}
	return history, nil
}

func (r *fakeRepo) put(c *Claim) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims[c.ID] = cloneClaim(c)
}

func sortNewestFirst(claims []*Claim) {
	slices.SortFunc(claims, func(a, b *Claim) int {
		if c := b.SubmissionDate.Compare(a.SubmissionDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

func cloneClaim(c *Claim) *Claim {
	copy := *c
	if c.RejectionReason != nil {
		r := *c.RejectionReason
		copy.RejectionReason = &r
	}
	if c.SupportingDocument != nil {
		d := *c.SupportingDocument
		copy.SupportingDocument = &d
	}
	return &copy
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *fakeBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, document.ErrBlobNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

type recordedTransition struct {
	role   Role
	action Action
	result string
}

type stubRecorder struct {
	mu          sync.Mutex
	created     int
	transitions []recordedTransition
}

func (s *stubRecorder) ClaimCreated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
}

func (s *stubRecorder) TransitionRecorded(role Role, action Action, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, recordedTransition{role: role, action: action, result: result})
}
