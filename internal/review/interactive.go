package review

import (
	"context"
	"fmt"
	"io"

	"github.com/illarion/statevault/internal/diff"
	"github.com/illarion/statevault/internal/merge"
	"github.com/illarion/statevault/internal/restore"
)

// ChoiceFunc returns the next lower-cased key the user pressed.
type ChoiceFunc func() (string, error)

// Interactive asks the user which changes to apply.
type Interactive struct {
	out    io.Writer
	choose ChoiceFunc
}

// NewInteractive returns a presenter that writes to out and reads answers
// through choose.
func NewInteractive(out io.Writer, choose ChoiceFunc) *Interactive {
	return &Interactive{out: out, choose: choose}
}

// Present implements restore.Presenter. Answering quit at any prompt
// returns restore.ErrCancelled.
func (i *Interactive) Present(ctx context.Context, p *restore.Preview) (merge.Selection, error) {
	Summary(i.out, p)

	if p.Mode == restore.ModeFullOverwrite {
		fmt.Fprintln(i.out)
		fmt.Fprintln(i.out, "  [y] Overwrite local data with this backup")
		fmt.Fprintln(i.out, "  [q] Cancel")
		if _, err := i.ask(ctx, "y", "q"); err != nil {
			return merge.Selection{}, err
		}
		return merge.Selection{}, nil
	}

	fmt.Fprintln(i.out)
	Changes(i.out, p)
	fmt.Fprintln(i.out)
	fmt.Fprintln(i.out, "  [a] Apply all changes")
	fmt.Fprintln(i.out, "  [r] Review each change")
	fmt.Fprintln(i.out, "  [q] Cancel")

	choice, err := i.ask(ctx, "a", "r", "q")
	if err != nil {
		return merge.Selection{}, err
	}

	var sel merge.Selection
	if choice == "a" {
		sel = p.SelectAll()
	} else {
		if sel, err = i.review(ctx, p); err != nil {
			return merge.Selection{}, err
		}
	}

	if sel.Resolutions, err = i.resolve(ctx, pending(p.Conflicts, sel)); err != nil {
		return merge.Selection{}, err
	}
	return sel, nil
}

func (i *Interactive) review(ctx context.Context, p *restore.Preview) (merge.Selection, error) {
	var sel merge.Selection
	all := false

	accept := func(c merge.SelectedChange) (bool, error) {
		if all {
			return true, nil
		}
		i.describe(c)
		fmt.Fprint(i.out, "Apply? [y]es / [n]o / [a]ll remaining / [q]uit: ")
		choice, err := i.ask(ctx, "y", "n", "a", "q")
		if err != nil {
			return false, err
		}
		if choice == "a" {
			all = true
		}
		return choice != "n", nil
	}

	for _, c := range merge.ItemChanges(p.Items, p.Key) {
		ok, err := accept(c)
		if err != nil {
			return merge.Selection{}, err
		}
		if ok {
			sel.Items = append(sel.Items, c)
		}
	}
	for _, c := range merge.SettingChanges(p.Settings) {
		ok, err := accept(c)
		if err != nil {
			return merge.Selection{}, err
		}
		if ok {
			sel.Settings = append(sel.Settings, c)
		}
	}
	for _, key := range p.Replaced {
		if !all {
			fmt.Fprintf(i.out, "\nReplace local record %s with the backup\n", key)
			fmt.Fprint(i.out, "Apply? [y]es / [n]o / [a]ll remaining / [q]uit: ")
			choice, err := i.ask(ctx, "y", "n", "a", "q")
			if err != nil {
				return merge.Selection{}, err
			}
			if choice == "n" {
				continue
			}
			all = choice == "a"
		}
		sel.Records = append(sel.Records, key)
	}
	return sel, nil
}

// pending keeps the conflicts whose modify is still selected.
func pending(cs diff.ConflictSet, sel merge.Selection) diff.ConflictSet {
	selected := make(map[merge.ConflictRef]bool, len(sel.Items))
	for _, c := range sel.Items {
		if c.Type == merge.Modify {
			selected[merge.ConflictRef{ItemKey: c.ItemKey, Field: c.Field}] = true
		}
	}

	var out diff.ConflictSet
	for _, c := range cs.Conflicts {
		if selected[merge.ConflictRef{ItemKey: c.ItemKey, Field: c.Field}] {
			out.Conflicts = append(out.Conflicts, c)
		}
	}
	return out
}

func (i *Interactive) describe(c merge.SelectedChange) {
	switch c.Type {
	case merge.Add:
		fmt.Fprintf(i.out, "\nAdd %s\n", Label(c.Item, c.ItemKey))
	case merge.Delete:
		fmt.Fprintf(i.out, "\nDelete %s\n", Label(c.Item, c.ItemKey))
	default:
		if c.ItemKey == "" {
			fmt.Fprintf(i.out, "\nSetting %s = %s\n", c.Field, FormatValue(c.Value))
		} else {
			fmt.Fprintf(i.out, "\nChange %s of %s to %s\n", c.Field, c.ItemKey, FormatValue(c.Value))
		}
	}
}

func (i *Interactive) resolve(ctx context.Context, cs diff.ConflictSet) (map[merge.ConflictRef]diff.Resolution, error) {
	if cs.Empty() {
		return nil, nil
	}

	resolutions := make(map[merge.ConflictRef]diff.Resolution, len(cs.Conflicts))
	for _, c := range cs.Conflicts {
		fmt.Fprintf(i.out, "\nConflict: %s of %s changed on both devices\n", c.Field, c.ItemKey)
		fmt.Fprintf(i.out, "  was:    %s\n", FormatValue(c.BaseVal))
		fmt.Fprintf(i.out, "  local:  %s\n", FormatValue(c.LocalVal))
		fmt.Fprintf(i.out, "  backup: %s\n", FormatValue(c.RemoteVal))
		fmt.Fprint(i.out, "Keep [l]ocal / use [b]ackup / [q]uit: ")

		choice, err := i.ask(ctx, "l", "b", "q")
		if err != nil {
			return nil, err
		}
		ref := merge.ConflictRef{ItemKey: c.ItemKey, Field: c.Field}
		if choice == "l" {
			resolutions[ref] = diff.ResolutionLocal
		} else {
			resolutions[ref] = diff.ResolutionRemote
		}
	}
	return resolutions, nil
}

// ask reads choices until one of valid is given. "q" always cancels.
func (i *Interactive) ask(ctx context.Context, valid ...string) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		choice, err := i.choose()
		if err != nil {
			return "", fmt.Errorf("failed to read choice: %w", err)
		}
		if choice == "q" {
			return "", restore.ErrCancelled
		}
		for _, v := range valid {
			if choice == v {
				return choice, nil
			}
		}
		fmt.Fprintln(i.out, "Invalid choice, please try again.")
	}
}
