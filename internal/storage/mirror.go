package storage

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MirrorAdapter writes every snapshot to several adapters at once and reads
// from the first one that has it.
type MirrorAdapter struct {
	targets []Adapter
}

// NewMirrorAdapter mirrors across targets. Load order follows the argument
// order.
func NewMirrorAdapter(targets ...Adapter) (*MirrorAdapter, error) {
	if len(targets) == 0 {
		return nil, errors.New("mirror needs at least one adapter")
	}
	return &MirrorAdapter{targets: targets}, nil
}

func (m *MirrorAdapter) LoadDatabase(ctx context.Context, name string) ([]byte, error) {
	var first error
	for _, t := range m.targets {
		data, err := t.LoadDatabase(ctx, name)
		if err == nil {
			return data, nil
		}
		if first == nil || (errors.Is(first, ErrNotFound) && !errors.Is(err, ErrNotFound)) {
			first = err
		}
	}
	return nil, first
}

func (m *MirrorAdapter) SaveDatabase(ctx context.Context, name string, data []byte) error {
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range m.targets {
		g.Go(func() error {
			if err := t.SaveDatabase(ctx, name, data); err != nil {
				return fmt.Errorf("mirror %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// DeleteDatabase removes name everywhere. It reports ErrNotFound only when
// no target had it.
func (m *MirrorAdapter) DeleteDatabase(ctx context.Context, name string) error {
	missing := make([]bool, len(m.targets))
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range m.targets {
		g.Go(func() error {
			err := t.DeleteDatabase(ctx, name)
			if errors.Is(err, ErrNotFound) {
				missing[i] = true
				return nil
			}
			if err != nil {
				return fmt.Errorf("mirror %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, miss := range missing {
		if !miss {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Close closes every target that holds resources.
func (m *MirrorAdapter) Close() error {
	var errs []error
	for _, t := range m.targets {
		if c, ok := t.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
