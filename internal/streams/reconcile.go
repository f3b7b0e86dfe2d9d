package streams

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/camstream/internal/video"
)

// maxConcurrentProbes bounds parallel device probing at startup.
const maxConcurrentProbes = 4

// validate refreshes every local source concurrently and returns the usable
// descriptors in their original order. Rejected sources are logged.
func (m *Manager) validate(ctx context.Context, descs []video.StreamDescriptor) []video.StreamDescriptor {
	if m.registry == nil {
		return descs
	}

	ok := make([]bool, len(descs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for i, desc := range descs {
		g.Go(func() error {
			if desc.Source == nil {
				return nil
			}
			ok[i] = m.usable(gctx, desc.Source)
			return nil
		})
	}
	_ = g.Wait()

	valid := make([]video.StreamDescriptor, 0, len(descs))
	for i, desc := range descs {
		if !ok[i] {
			m.logger.Error("Invalid video source, stream skipped",
				"name", desc.Name, "source", sourceDescription(desc))
			continue
		}
		valid = append(valid, desc)
	}
	return valid
}

// Validate refreshes one descriptor's source against the registry. AddAndStart
// and Restart call it so unusable devices never reach the builder.
func (m *Manager) Validate(ctx context.Context, desc video.StreamDescriptor) error {
	if desc.Source == nil {
		return NewStreamError(ErrCodeInvalidSource, "descriptor has no source", nil)
	}
	if m.registry != nil && !m.usable(ctx, desc.Source) {
		return NewStreamError(ErrCodeInvalidSource, sourceDescription(desc), nil)
	}
	return nil
}

// usable reports whether a refresh succeeded and left the source valid.
func (m *Manager) usable(ctx context.Context, src video.Source) bool {
	return m.registry.Refresh(ctx, src) && m.registry.IsValid(src)
}

// LoadAndStart validates the persisted descriptors and starts the valid ones
// in order. A failing stream does not prevent the others from starting.
func (m *Manager) LoadAndStart(ctx context.Context, descs []video.StreamDescriptor) error {
	valid := m.validate(ctx, descs)

	var errs []error
	started := 0
	for _, desc := range valid {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := m.add(ctx, desc); err != nil {
			errs = append(errs, fmt.Errorf("stream %q: %w", desc.Name, err))
			continue
		}
		started++
	}

	m.logger.Info("Streams loaded", "configured", len(descs), "valid", len(valid), "started", started)
	return errors.Join(errs...)
}

// Reconcile brings the registry in line with descs: streams whose descriptor
// disappeared or changed are removed, new descriptors are validated and started.
// Unchanged streams keep running.
func (m *Manager) Reconcile(ctx context.Context, descs []video.StreamDescriptor) error {
	wanted := make(map[string]video.StreamDescriptor, len(descs))
	for _, d := range descs {
		wanted[descriptorKey(d)] = d
	}

	var errs []error
	kept := make(map[string]bool)
	for _, info := range m.List() {
		key := descriptorKey(info.Descriptor)
		if d, ok := wanted[key]; ok && sameDescriptor(d, info.Descriptor) && !kept[key] {
			kept[key] = true
			continue
		}
		if err := m.Remove(ctx, info.ID); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}

	var added []video.StreamDescriptor
	for _, d := range descs {
		key := descriptorKey(d)
		if kept[key] {
			continue
		}
		kept[key] = true
		added = append(added, d)
	}

	if len(added) > 0 {
		if err := m.LoadAndStart(ctx, added); err != nil {
			errs = append(errs, err)
		}
	}
	m.logger.Info("Streams reconciled", "wanted", len(descs), "added", len(added))
	return errors.Join(errs...)
}

// descriptorKey identifies a descriptor across reloads: its device when it
// owns one, else its name.
func descriptorKey(d video.StreamDescriptor) string {
	if path := d.DevicePath(); path != "" {
		return "device:" + path
	}
	return "name:" + d.Name
}

func sameDescriptor(a, b video.StreamDescriptor) bool {
	if a.Name != b.Name || a.DevicePath() != b.DevicePath() {
		return false
	}
	if a.Configuration != b.Configuration {
		return false
	}
	if al, ok := a.Source.(*video.Local); ok {
		bl, ok := b.Source.(*video.Local)
		if !ok || al.Name != bl.Name {
			return false
		}
	}
	return slices.Equal(a.Endpoints, b.Endpoints)
}
