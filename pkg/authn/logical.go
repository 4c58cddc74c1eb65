package authn

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
	"github.com/indykite/indykite-sdk-web-sub001/pkg/ui"
)

// Rendering order of option buckets. Forms come first, then plain
// actions, then everything without an explicit priority, and external
// authentication methods close the list.
const (
	bucketForm = iota
	bucketAction
	bucketDefault
	bucketExternal
)

func optionBucket(t msg.Type) int {
	switch t {
	case msg.TypeForm:
		return bucketForm
	case msg.TypeAction:
		return bucketAction
	case msg.TypeOidc, msg.TypeWebauthn:
		return bucketExternal
	default:
		return bucketDefault
	}
}

// fixedPosition reports whether an option keeps its wire position
// instead of taking part in bucket ordering.
func fixedPosition(t msg.Type) bool {
	return t == msg.TypeMessage
}

// sortOptions reorders the sortable options by bucket, then by the
// server-assigned ordinal within a bucket. Options with a fixed
// position stay exactly where the server placed them.
func sortOptions(opts []msg.Message) []msg.Message {
	out := slices.Clone(opts)

	var idx []int
	var sortable []msg.Message
	for i, o := range opts {
		if fixedPosition(o.Type) {
			continue
		}
		idx = append(idx, i)
		sortable = append(sortable, o)
	}

	sort.SliceStable(sortable, func(a, b int) bool {
		ba, bb := optionBucket(sortable[a].Type), optionBucket(sortable[b].Type)
		if ba != bb {
			return ba < bb
		}
		return sortable[a].Ord < sortable[b].Ord
	})

	for k, i := range idx {
		out[i] = sortable[k]
	}
	return out
}

// dispatchLogical expands an "or" compound into its options, rendering
// separators wherever two adjacent options belong to different buckets.
// The boundary into the external bucket additionally gets the "other
// options" label.
func (f *Flow) dispatchLogical(ctx context.Context, m *msg.Message, dctx *DispatchContext) error {
	if m.Op != "or" {
		err := fmt.Errorf("unsupported combinator %q in compound message", m.Op)
		slog.Error("cannot expand compound message", "op", m.Op, "id", m.ID)
		return err
	}

	opts := sortOptions(m.Opts)
	prev := -1
	for i := range opts {
		o := &opts[i]
		if !fixedPosition(o.Type) {
			b := optionBucket(o.Type)
			if prev >= 0 && b != prev {
				f.surface.ShowSeparator(&ui.Separator{Label: dctx.label(LabelSeparator, defaultLabel(LabelSeparator))})
				if b == bucketExternal {
					f.surface.ShowSeparator(&ui.Separator{Label: dctx.label(LabelOtherOptions, defaultLabel(LabelOtherOptions))})
				}
			}
			prev = b
		}
		if o.Thread == nil {
			o.Thread = m.Thread
		}
		if err := f.Dispatch(ctx, o, dctx); err != nil {
			return err
		}
	}
	return nil
}
