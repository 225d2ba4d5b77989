package template

import (
	"strconv"
	"strings"

	"github.com/edgecomet/mcprt/pkg/types"
)

// extract walks the compiled segment sequence against uri, left to right,
// greedy within a segment but anchored at the next literal boundary
// (spec §4.1 rules 1-6).
func (c *compiled) extract(uri string) (types.Binding, error) {
	binding := types.Binding{}
	remaining := uri

	for i := 0; i < len(c.segments); i++ {
		seg := c.segments[i]

		if seg.kind == kindLiteral {
			if !strings.HasPrefix(remaining, seg.literal) {
				return nil, types.ErrTemplateMismatch
			}
			remaining = remaining[len(seg.literal):]
			continue
		}

		// Placeholder segment.
		if remaining == "" {
			switch seg.modifier {
			case ModDefault:
				binding[seg.name] = seg.def
			case ModOptional:
				// omitted: no binding emitted.
			default:
				return nil, types.ErrTemplateMismatch
			}
			continue
		}

		var value string
		hasNext := i+1 < len(c.segments)
		if !hasNext {
			value = remaining
			remaining = ""
		} else {
			nextLit := c.segments[i+1].literal
			idx := strings.LastIndex(remaining, nextLit)
			if idx == -1 {
				if seg.modifier != ModOptional {
					return nil, types.ErrTemplateMismatch
				}
				value = ""
			} else {
				value = remaining[:idx]
				remaining = remaining[idx:]
			}
		}

		if value == "" && seg.modifier == ModOptional {
			continue
		}

		if err := validateType(value, seg); err != nil {
			return nil, err
		}
		binding[seg.name] = value
	}

	if remaining != "" {
		return nil, types.ErrTemplateMismatch
	}
	return binding, nil
}

// validateType checks a captured substring against the placeholder's
// declared type (spec §4.1 rule 3-4).
func validateType(value string, seg segment) error {
	switch seg.ptype {
	case TypeString:
		return nil
	case TypeInt:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return types.ErrTypeMismatch
		}
		return nil
	case TypeNumber:
		if !isJSONNumber(value) {
			return types.ErrTypeMismatch
		}
		return nil
	case TypeBool:
		if value != "true" && value != "false" {
			return types.ErrTypeMismatch
		}
		return nil
	case TypePattern:
		if !strings.HasPrefix(value, seg.spec) {
			return types.ErrTypeMismatch
		}
		return nil
	default:
		return types.ErrTypeMismatch
	}
}

// isJSONNumber reports whether s matches the JSON number grammar (RFC
// 8259 section 6): an optional leading '-', an integer part of "0" or a
// non-zero digit followed by more digits, an optional fractional part,
// and an optional exponent. strconv.ParseFloat is deliberately not used
// here since it also accepts "NaN", "Inf", and hex floats, none of
// which are valid JSON numbers.
func isJSONNumber(s string) bool {
	i, n := 0, len(s)
	if n == 0 {
		return false
	}
	if s[i] == '-' {
		i++
	}
	if i >= n {
		return false
	}
	if s[i] == '0' {
		i++
	} else if s[i] >= '1' && s[i] <= '9' {
		i++
		for i < n && s[i] >= '0' && s[i] <= '9' {
			i++
		}
	} else {
		return false
	}

	if i < n && s[i] == '.' {
		i++
		start := i
		for i < n && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start {
			return false
		}
	}

	if i < n && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < n && (s[i] == '+' || s[i] == '-') {
			i++
		}
		start := i
		for i < n && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start {
			return false
		}
	}

	return i == n
}

// expand is the inverse of extract: it renders a URI from the compiled
// template and a parameter binding (spec §4.1, template_expand).
func (c *compiled) expand(binding types.Binding) (string, error) {
	var sb strings.Builder
	for _, seg := range c.segments {
		if seg.kind == kindLiteral {
			sb.WriteString(seg.literal)
			continue
		}

		value, ok := binding[seg.name]
		if !ok {
			switch seg.modifier {
			case ModOptional:
				continue
			case ModDefault:
				value = seg.def
			default:
				return "", types.ErrMissingRequiredParam
			}
		}
		sb.WriteString(value)
	}
	return sb.String(), nil
}
