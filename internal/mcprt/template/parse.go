package template

import (
	"fmt"
	"strings"
)

// compiled is the parsed form of one template string.
type compiled struct {
	source   string
	segments []segment
}

// parseTemplate compiles a template string into its ordered segment
// sequence (spec §3.1, §4.1). It never panics; malformed input is always
// reported as an error so that template_matches can report "false" per
// the "never fails" contract in spec's operation table.
func parseTemplate(tpl string) (*compiled, error) {
	if tpl == "" {
		return nil, fmt.Errorf("mcprt/template: empty template")
	}

	var segs []segment
	var lit strings.Builder
	names := make(map[string]struct{})

	flushLiteral := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{kind: kindLiteral, literal: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(tpl) {
		c := tpl[i]
		if c != '{' {
			lit.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(tpl[i:], '}')
		if end == -1 {
			return nil, fmt.Errorf("mcprt/template: unterminated placeholder in %q", tpl)
		}
		body := tpl[i+1 : i+end]
		if len(segs) > 0 && segs[len(segs)-1].kind == kindPlaceholder && lit.Len() == 0 {
			return nil, fmt.Errorf("mcprt/template: two placeholders abut without a literal in %q", tpl)
		}
		flushLiteral()

		ph, err := parsePlaceholder(body)
		if err != nil {
			return nil, fmt.Errorf("mcprt/template: %w (template %q)", err, tpl)
		}
		if _, dup := names[ph.name]; dup {
			return nil, fmt.Errorf("mcprt/template: duplicate placeholder name %q in %q", ph.name, tpl)
		}
		names[ph.name] = struct{}{}
		segs = append(segs, ph)

		i += end + 1
	}
	flushLiteral()

	if len(segs) == 0 {
		return nil, fmt.Errorf("mcprt/template: template %q has no content", tpl)
	}

	return &compiled{source: tpl, segments: segs}, nil
}

// parsePlaceholder parses the content between "{" and "}": name[:type[:spec]][modifier].
func parsePlaceholder(body string) (segment, error) {
	if body == "" {
		return segment{}, fmt.Errorf("empty placeholder name")
	}

	fields := strings.SplitN(body, ":", 3)
	last := len(fields) - 1

	modifier, def, trimmed := extractModifier(fields[last])
	fields[last] = trimmed

	name := fields[0]
	if name == "" {
		return segment{}, fmt.Errorf("empty placeholder name")
	}

	seg := segment{kind: kindPlaceholder, name: name, ptype: TypeString, modifier: modifier, def: def}

	if len(fields) > 1 {
		t, err := parseType(fields[1])
		if err != nil {
			return segment{}, err
		}
		seg.ptype = t
	}
	if len(fields) > 2 {
		if seg.ptype != TypePattern {
			return segment{}, fmt.Errorf("spec component only valid for type=pattern in %q", body)
		}
		seg.spec = strings.TrimSuffix(fields[2], "*")
	} else if seg.ptype == TypePattern {
		return segment{}, fmt.Errorf("type=pattern requires a spec component in %q", body)
	}

	return seg, nil
}

func parseType(s string) (PlaceholderType, error) {
	switch s {
	case "", "string":
		return TypeString, nil
	case "int":
		return TypeInt, nil
	case "number":
		return TypeNumber, nil
	case "bool":
		return TypeBool, nil
	case "pattern":
		return TypePattern, nil
	default:
		return 0, fmt.Errorf("unknown placeholder type %q", s)
	}
}

// extractModifier splits a trailing "?" or "=<default>" off the last
// colon-delimited field of a placeholder body.
func extractModifier(s string) (Modifier, string, string) {
	if strings.HasSuffix(s, "?") {
		return ModOptional, "", strings.TrimSuffix(s, "?")
	}
	if idx := strings.IndexByte(s, '='); idx != -1 {
		return ModDefault, s[idx+1:], s[:idx]
	}
	return ModRequired, "", s
}
