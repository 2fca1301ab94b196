package labeled

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/qri-io/xproj/config"
)

// String renders a multi-line summary of the object.
func (o *Object) String() string {
	var b strings.Builder
	if o.kind == KindDataArray {
		fmt.Fprintf(&b, "<labeled.DataArray %q %s>\n", o.name, o.data)
	} else {
		b.WriteString("<labeled.Dataset>\n")
	}

	dims := o.Dims()
	names := slices.Sorted(maps.Keys(dims))
	parts := make([]string, len(names))
	for i, d := range names {
		parts[i] = fmt.Sprintf("%s: %d", d, dims[d])
	}
	fmt.Fprintf(&b, "Dimensions:  (%s)\n", strings.Join(parts, ", "))

	width := nameWidth(o.coordOrder, o.varOrder)
	if len(o.coordOrder) > 0 {
		b.WriteString("Coordinates:\n")
		for _, name := range o.coordOrder {
			marker := " "
			if _, ok := o.indexes[name]; ok {
				marker = "*"
			}
			fmt.Fprintf(&b, "  %s %-*s %s\n", marker, width, name, o.coords[name])
		}
	}
	if len(o.varOrder) > 0 {
		b.WriteString("Data variables:\n")
		for _, name := range o.varOrder {
			fmt.Fprintf(&b, "    %-*s %s\n", width, name, o.vars[name])
		}
	}

	if groups := o.Indexes().GroupByIndex(); len(groups) > 0 {
		b.WriteString("Indexes:\n")
		maxWidth := config.Get().DisplayWidth
		for _, g := range groups {
			fmt.Fprintf(&b, "    %-*s %s\n", width, strings.Join(g.CoordNames, ", "), inlineIndex(g.Index, maxWidth))
		}
	}

	if len(o.attrs) > 0 {
		b.WriteString("Attributes:\n")
		for _, k := range slices.Sorted(maps.Keys(o.attrs)) {
			fmt.Fprintf(&b, "    %s: %v\n", k, o.attrs[k])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func inlineIndex(idx Index, maxWidth int) string {
	if r, ok := idx.(InlineReprer); ok {
		return r.ReprInline(maxWidth)
	}
	return fmt.Sprintf("%T", idx)
}

func nameWidth(lists ...[]string) int {
	w := 0
	for _, l := range lists {
		for _, n := range l {
			w = max(w, len(n))
		}
	}
	return w
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}

// formatValues renders up to limit values, eliding the rest.
func formatValues(data []float64, limit int) string {
	var parts []string
	for i, v := range data {
		if i == limit {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return strings.Join(parts, " ")
}
