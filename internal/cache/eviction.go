package cache

import (
	"errors"
	"time"

	"github.com/dustin/go-humanize"
)

// expired reports whether an entry created at createdAt is past the TTL.
// An entry is still live at exactly createdAt+ttl.
func (m *Manager) expired(createdAt time.Time) bool {
	if m.ttl <= 0 {
		return false
	}
	return m.now().Sub(createdAt) > m.ttl
}

// evictForInsert removes the oldest entries while the total size of the
// existing artifacts exceeds the budget. The incoming entry is admitted
// afterwards regardless of its own size.
func (m *Manager) evictForInsert() error {
	if m.maxSize <= 0 {
		return nil
	}

	_, total, err := m.index.totals()
	if err != nil {
		return err
	}
	if total <= m.maxSize {
		return nil
	}

	oldest, err := m.index.oldest()
	if err != nil {
		return err
	}

	for _, md := range oldest {
		if total <= m.maxSize {
			break
		}
		if err := m.removeLocked(md); err != nil {
			return err
		}
		total -= md.Size
		m.logger.Debug("evicted for size", "key", md.Key, "size", humanize.IBytes(uint64(md.Size)))
	}
	return nil
}

// Prune is an explicit maintenance sweep. It drops records whose artifact is
// missing, then expired entries, then the oldest entries until the total
// size is within the budget.
func (m *Manager) Prune() (PruneResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res PruneResult

	all, err := m.index.oldest()
	if err != nil {
		return res, &CacheIOError{Op: "prune", Err: err}
	}

	var errs []error
	live := all[:0]
	for _, md := range all {
		switch {
		case !fileExists(md.FilePath):
			if err := m.index.delete(md.Key); err != nil {
				errs = append(errs, err)
				continue
			}
			res.Missing++
		case m.expired(md.CreatedAt):
			if err := m.removeLocked(md); err != nil {
				errs = append(errs, err)
				continue
			}
			res.Expired++
			res.FreedBytes += md.Size
		default:
			live = append(live, md)
		}
	}

	if m.maxSize > 0 {
		var total int64
		for _, md := range live {
			total += md.Size
		}
		for _, md := range live {
			if total <= m.maxSize {
				break
			}
			if err := m.removeLocked(md); err != nil {
				errs = append(errs, err)
				continue
			}
			total -= md.Size
			res.Evicted++
			res.FreedBytes += md.Size
		}
	}

	if res.Removed() > 0 {
		m.logger.Info("cache pruned",
			"missing", res.Missing,
			"expired", res.Expired,
			"evicted", res.Evicted,
			"freed", humanize.IBytes(uint64(res.FreedBytes)),
		)
	}

	if err := errors.Join(errs...); err != nil {
		return res, &CacheIOError{Op: "prune", Err: err}
	}
	return res, nil
}
