package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/observational-memory/internal/codec"
	"github.com/rcliao/observational-memory/internal/model"
	"github.com/rcliao/observational-memory/internal/summarizer"
)

// ReflectPlan is a pending compaction: the condensed replacement plus
// enough bookkeeping to commit it safely later.
type ReflectPlan struct {
	RunID           string `json:"run_id"`
	BeforeBytes     int    `json:"before_bytes"`
	AfterBytes      int    `json:"after_bytes"`
	BeforeChecksum  string `json:"before_checksum"`
	CondensedText   string `json:"-"`
	RecentGroups    int    `json:"recent_groups"`
	CompactedGroups int    `json:"compacted_groups"`
}

// Reflect computes a compaction plan without touching any file. The store
// is partitioned by age band; the recent band passes through untouched
// while older bands are condensed by the summarizer under the retention
// policy. Returns ErrNotNeeded when the store is too small or holds
// nothing old enough to compress.
func (p *Project) Reflect(ctx context.Context, force bool) (*ReflectPlan, error) {
	unlock := p.lock()
	defer unlock()

	cfg := p.eng.cfg

	text, err := p.loadStoreText()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: store is empty", ErrNotNeeded)
	}
	if !force && len(text) < cfg.Reflect.MinChars {
		return nil, fmt.Errorf("%w: %d chars (minimum %d)", ErrNotNeeded, len(text), cfg.Reflect.MinChars)
	}

	st := codec.Parse(text)
	recent, moderate, aged := p.partitionByAge(st)
	if len(moderate.Groups) == 0 && len(aged.Groups) == 0 {
		return nil, fmt.Errorf("%w: nothing older than %d days", ErrNotNeeded, cfg.Reflect.RecentDays)
	}

	plan := &ReflectPlan{
		RunID:          newRunID(),
		BeforeBytes:    len(text),
		BeforeChecksum: textChecksum(text),
		RecentGroups:   len(recent.Groups),
	}

	var parts []string
	for _, band := range []struct {
		name  string
		store *model.Store
		ratio float64
	}{
		{"aged", aged, cfg.Reflect.AgedRatio},
		{"moderate", moderate, cfg.Reflect.ModerateRatio},
	} {
		if len(band.store.Groups) == 0 {
			continue
		}
		bandText := codec.Serialize(band.store)
		condensed, err := p.eng.sum.Reflect(ctx, summarizer.ReflectRequest{
			Band:        band.name,
			StoreText:   bandText,
			Today:       p.eng.today(),
			TargetChars: int(float64(len(bandText)) * band.ratio),
		})
		if err != nil {
			// All-or-nothing: no file was touched.
			return nil, fmt.Errorf("summarizer reflect (%s band): %w", band.name, err)
		}
		parts = append(parts, strings.TrimRight(condensed, "\n"))
		plan.CompactedGroups += len(band.store.Groups)
	}

	if len(recent.Groups) > 0 {
		parts = append(parts, strings.TrimRight(codec.Serialize(recent), "\n"))
	}

	// Normalize through the codec so the committed store is canonical.
	combined := strings.Join(parts, "\n\n") + "\n"
	plan.CondensedText = codec.Serialize(codec.Parse(combined))
	plan.AfterBytes = len(plan.CondensedText)
	return plan, nil
}

// CommitReflect archives the pre-compaction store, then atomically
// replaces it with the plan's condensed text. Fails with ErrStoreChanged
// if the store was mutated after the plan was computed.
func (p *Project) CommitReflect(ctx context.Context, plan *ReflectPlan) error {
	unlock := p.lock()
	defer unlock()

	text, err := p.loadStoreText()
	if err != nil {
		return err
	}
	if textChecksum(text) != plan.BeforeChecksum {
		return ErrStoreChanged
	}

	// Snapshot first: the archive pre-image must be durable before the
	// store is replaced.
	if err := p.archive("Reflection", plan.RunID, text, plan.AfterBytes); err != nil {
		return err
	}
	if err := p.writeStoreText(plan.CondensedText); err != nil {
		return err
	}
	p.audit(plan.RunID, fmt.Sprintf("reflect before=%d after=%d groups=%d",
		plan.BeforeBytes, plan.AfterBytes, plan.CompactedGroups))
	p.eng.log.Info("reflected observations",
		"before", plan.BeforeBytes, "after", plan.AfterBytes)
	return nil
}

// partitionByAge splits the store's groups into recent / moderate / aged
// bands relative to now, preserving relative order within each band.
// Groups without a parseable date stay in the recent band so they are
// never handed to the summarizer for compression.
func (p *Project) partitionByAge(st *model.Store) (recent, moderate, aged *model.Store) {
	cfg := p.eng.cfg
	now := p.eng.nowFn().UTC()
	recent, moderate, aged = &model.Store{}, &model.Store{}, &model.Store{}

	for _, g := range st.Groups {
		date, err := time.Parse("2006-01-02", g.Date)
		if err != nil {
			recent.Groups = append(recent.Groups, g)
			continue
		}
		ageDays := int(now.Sub(date).Hours() / 24)
		switch {
		case ageDays <= cfg.Reflect.RecentDays:
			recent.Groups = append(recent.Groups, g)
		case ageDays <= cfg.Reflect.ModerateDays:
			moderate.Groups = append(moderate.Groups, g)
		default:
			aged.Groups = append(aged.Groups, g)
		}
	}
	return recent, moderate, aged
}

func textChecksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
