// Package candidate keeps the short-lived association between the identifier
// carried in a vote button and the full variant text behind it.
package candidate

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/sproto/internal/logging"
)

// #region types

// Status is the outcome of Take.
type Status int

const (
	// Missing means the identifier was never issued by this process or has
	// expired. The first Missing leaves a tombstone too.
	Missing Status = iota
	// Found means the entry was live and has now been removed.
	Found
	// Consumed means the entry was already taken by an earlier vote.
	Consumed
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Consumed:
		return "consumed"
	default:
		return "missing"
	}
}

// Entry is one dispatched variant awaiting a vote.
type Entry struct {
	ID        string
	Text      string
	Owner     string
	CreatedAt time.Time
}

// MaxIDLen bounds identifiers so "down|<id>" fits the transport's 64-byte payload.
const MaxIDLen = 40

const shardCount = 16

// epochSpan keeps the boot tag at six base36 digits.
const epochSpan = 36 * 36 * 36 * 36 * 36 * 36

type shard struct {
	mu         sync.Mutex
	entries    map[string]Entry
	tombstones map[string]time.Time
}

// #endregion types

// #region store

// Store maps identifiers to variant text. Safe for concurrent use; operations
// on the same identifier are serialized by its shard lock.
type Store struct {
	shards [shardCount]shard
	epoch  string
	seq    atomic.Uint64
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

// NewStore creates a store whose entries and tombstones expire after ttl.
// ttl <= 0 disables expiry.
func NewStore(ttl time.Duration, log *zap.Logger) *Store {
	s := &Store{
		epoch: epochTag(time.Now()),
		ttl:   ttl,
		now:   time.Now,
		log:   logging.OrNop(log).Named("candidate"),
	}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]Entry)
		s.shards[i].tombstones = make(map[string]time.Time)
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.shards[h.Sum32()%shardCount]
}

// #endregion store

// #region put-take

// Put registers text for owner and returns a fresh identifier. Identifiers
// embed the store's boot tag and a sequence number, so two Puts never share
// one and buttons from an earlier process only match here if both boots fell
// on the same second modulo epochSpan.
func (s *Store) Put(owner, text string) string {
	id := newID(s.epoch, s.seq.Add(1), owner, text)
	sh := s.shardFor(id)

	sh.mu.Lock()
	sh.entries[id] = Entry{ID: id, Text: text, Owner: owner, CreatedAt: s.now()}
	sh.mu.Unlock()
	return id
}

// Take removes and returns the entry for id. Every Take leaves a tombstone,
// so a repeated vote reports Consumed whether the first one was Found or
// Missing.
func (s *Store) Take(id string) (Entry, Status) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if e, ok := sh.entries[id]; ok {
		delete(sh.entries, id)
		sh.tombstones[id] = s.now()
		return e, Found
	}
	if _, ok := sh.tombstones[id]; ok {
		return Entry{}, Consumed
	}
	sh.tombstones[id] = s.now()
	return Entry{}, Missing
}

// Len reports live entries.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// #endregion put-take

// #region eviction

// Sweep drops entries and tombstones older than the TTL and returns how many
// live entries were evicted.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)
	evicted := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, e := range sh.entries {
			if e.CreatedAt.Before(cutoff) {
				delete(sh.entries, id)
				evicted++
			}
		}
		for id, at := range sh.tombstones {
			if at.Before(cutoff) {
				delete(sh.tombstones, id)
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Info("evicted unvoted candidates", zap.Int("count", n), zap.Int("live", s.Len()))
			}
		}
	}
}

// #endregion eviction

// #region identifiers

// newID renders "<epoch>.<seq>.<owner>.<text>" in base36/hex, at most
// MaxIDLen bytes.
func newID(epoch string, seq uint64, owner, text string) string {
	th := fnv.New32a()
	th.Write([]byte(text))
	textTag := strconv.FormatUint(uint64(th.Sum32()&0xffff), 16)

	return epoch + "." + strconv.FormatUint(seq, 36) + "." + ownerTag(owner) + "." + textTag
}

func epochTag(t time.Time) string {
	return strconv.FormatUint(uint64(t.Unix())%epochSpan, 36)
}

func ownerTag(owner string) string {
	if n, err := strconv.ParseInt(owner, 10, 64); err == nil {
		if n < 0 {
			return "n" + strconv.FormatUint(uint64(-n), 36)
		}
		return strconv.FormatInt(n, 36)
	}
	h := fnv.New32a()
	h.Write([]byte(owner))
	return strconv.FormatUint(uint64(h.Sum32()), 16)
}

// #endregion identifiers
