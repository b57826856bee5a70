package workspace

import (
	"errors"
	"fmt"

	"github.com/chazu/bangle/pkg/recipe"
)

// Apply adds the recipe's parts to the catalog and replays its commands
// in order. Drops of unknown parts are skipped and reported together in
// the returned error; the remaining commands still run.
func (w *Workspace) Apply(r *recipe.Recipe) error {
	if w.closed {
		return ErrClosed
	}
	w.catalog.Add(r.Parts...)

	var errs []error
	for i, cmd := range r.Commands {
		switch cmd.Op {
		case recipe.OpDrop:
			if _, err := w.DropByID(cmd.PartID, cmd.Position); err != nil {
				errs = append(errs, fmt.Errorf("command %d: %w", i+1, err))
			}
		case recipe.OpClear:
			w.Clear()
		case recipe.OpResetLattice:
			if err := w.ResetLattice(cmd.Count, cmd.Length); err != nil {
				errs = append(errs, fmt.Errorf("command %d: %w", i+1, err))
			}
		default:
			errs = append(errs, fmt.Errorf("command %d: unsupported op %v", i+1, cmd.Op))
		}
	}
	if err := errors.Join(errs...); err != nil {
		w.log.Printf("workspace: recipe: %v", err)
		return err
	}
	return nil
}
