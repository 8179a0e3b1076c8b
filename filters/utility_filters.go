package filters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kida-ssg/kida/runtime"
)

// TestLookup applies a named `is` test, the same signature
// branching.TestRegistry.Apply exposes. filters can't import branching
// directly (branching's own tests import filters), so the environment
// wires this in with SetTestLookup once at startup.
type TestLookup func(name string, value interface{}, args ...interface{}) (bool, error)

// selectionTests backs SelectFilter/RejectFilter's optional test-name
// argument (select(attribute_or_test, *args)), sharing the same `is`
// predicates the parser's test expressions use.
var selectionTests TestLookup

// SetTestLookup wires the `is` test registry into the filters package.
// Called from environment construction; like the package's other
// process-wide registries, the most recently constructed Environment's
// tests win for select/reject by name.
func SetTestLookup(lookup TestLookup) {
	selectionTests = lookup
}

// DefaultFilter returns default value if input is falsy
func DefaultFilter(value interface{}, args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return value, nil
	}

	defaultValue := args[0]
	boolean := false

	if len(args) > 1 {
		boolean = ToBool(args[1])
	}

	// Check if value is undefined
	if _, ok := value.(*runtime.Undefined); ok {
		return defaultValue, nil
	}

	if boolean {
		// Use boolean test
		if ToBool(value) {
			return value, nil
		}
	} else {
		// Use undefined test (nil, empty string, etc.)
		if value != nil {
			if s, ok := value.(string); ok && s != "" {
				return value, nil
			} else if !ok {
				return value, nil
			}
		}
	}

	return defaultValue, nil
}

// MapFilter applies an attribute or filter to each item
func MapFilter(value interface{}, args ...interface{}) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("map filter requires attribute or filter name")
	}

	attrOrFilter := ToString(args[0])

	switch v := value.(type) {
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			// Try as attribute first
			attr := extractAttribute(item, attrOrFilter)
			if attr != nil {
				result[i] = attr
			} else {
				// Could try as filter here
				result[i] = item
			}
		}
		return result, nil

	default:
		return nil, fmt.Errorf("map filter requires a sequence")
	}
}

// SelectFilter keeps items that pass a test: select() keeps truthy items,
// select("even") or select("greaterthan", 3) applies the named `is` test,
// and select(fn) applies a Go predicate directly.
func SelectFilter(value interface{}, args ...interface{}) (interface{}, error) {
	v, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("select filter requires a sequence")
	}
	return filterBySelection(v, args, true)
}

// RejectFilter drops items that pass a test; the inverse of SelectFilter.
func RejectFilter(value interface{}, args ...interface{}) (interface{}, error) {
	v, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("reject filter requires a sequence")
	}
	return filterBySelection(v, args, false)
}

func filterBySelection(items []interface{}, args []interface{}, keepOnPass bool) (interface{}, error) {
	if len(args) > 0 {
		if predicate, ok := args[0].(func(interface{}) bool); ok {
			var result []interface{}
			for _, item := range items {
				if predicate(item) == keepOnPass {
					result = append(result, item)
				}
			}
			return result, nil
		}
	}

	var testName string
	var testArgs []interface{}
	if len(args) > 0 {
		testName = ToString(args[0])
		testArgs = args[1:]
	}

	var result []interface{}
	for _, item := range items {
		var pass bool
		var err error
		switch {
		case testName == "":
			pass = ToBool(item)
		case selectionTests != nil:
			pass, err = selectionTests(testName, item, testArgs...)
		default:
			pass, err = builtinSelectionTest(testName, item, testArgs...)
		}
		if err != nil {
			return nil, err
		}
		if pass == keepOnPass {
			result = append(result, item)
		}
	}
	return result, nil
}

// builtinSelectionTest covers the handful of `is` tests select/reject need
// when no environment's full test registry has been wired via
// SetTestLookup (e.g. the filters package used standalone).
func builtinSelectionTest(name string, value interface{}, args ...interface{}) (bool, error) {
	switch name {
	case "none":
		return value == nil, nil
	case "defined":
		return value != nil, nil
	case "undefined":
		return value == nil, nil
	case "string":
		_, ok := value.(string)
		return ok, nil
	case "even", "odd":
		n, err := ToInt(value)
		if err != nil {
			return false, fmt.Errorf("%s test requires a number, got %T", name, value)
		}
		isEven := n%2 == 0
		if name == "even" {
			return isEven, nil
		}
		return !isEven, nil
	default:
		return false, fmt.Errorf("unknown test %q (no environment test registry wired)", name)
	}
}

// AttrFilter extracts an attribute from an object
func AttrFilter(value interface{}, args ...interface{}) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("attr filter requires attribute name")
	}

	attrName := ToString(args[0])
	return extractAttribute(value, attrName), nil
}

// PPrintFilter formats value for pretty printing
func PPrintFilter(value interface{}, args ...interface{}) (interface{}, error) {
	verbose := false
	if len(args) > 0 {
		verbose = ToBool(args[0])
	}

	if verbose {
		// More detailed representation
		return fmt.Sprintf("%#v", value), nil
	}

	// Simple pretty print using strings.Builder for efficiency
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var result strings.Builder
		result.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				result.WriteString(", ")
			}
			result.WriteString(k)
			result.WriteString(": ")
			fmt.Fprintf(&result, "%v", v[k])
		}
		result.WriteByte('}')
		return result.String(), nil

	case []interface{}:
		var result strings.Builder
		result.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				result.WriteString(", ")
			}
			fmt.Fprintf(&result, "%v", item)
		}
		result.WriteByte(']')
		return result.String(), nil

	default:
		return fmt.Sprintf("%v", value), nil
	}
}

// DictSortFilter sorts a dictionary by keys or values
func DictSortFilter(value interface{}, args ...interface{}) (interface{}, error) {
	caseSensitive := false
	byKey := true
	reverse := false

	if len(args) > 0 {
		caseSensitive = ToBool(args[0])
	}
	if len(args) > 1 {
		byKey = ToString(args[1]) == "key"
	}
	if len(args) > 2 {
		reverse = ToBool(args[2])
	}

	switch v := value.(type) {
	case map[string]interface{}:
		type kv struct {
			key   string
			value interface{}
		}

		var pairs []kv
		for k, val := range v {
			pairs = append(pairs, kv{key: k, value: val})
		}

		sort.Slice(pairs, func(i, j int) bool {
			var a, b string
			if byKey {
				a, b = pairs[i].key, pairs[j].key
			} else {
				a, b = ToString(pairs[i].value), ToString(pairs[j].value)
			}

			if !caseSensitive {
				a, b = strings.ToLower(a), strings.ToLower(b)
			}

			if reverse {
				return a > b
			}
			return a < b
		})

		result := make([][]interface{}, len(pairs))
		for i, pair := range pairs {
			result[i] = []interface{}{pair.key, pair.value}
		}

		return result, nil

	default:
		return nil, fmt.Errorf("dictsort filter requires a mapping")
	}
}

// GroupByFilter groups sequence items by attribute
func GroupByFilter(value interface{}, args ...interface{}) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("groupby filter requires attribute name")
	}

	attrName := ToString(args[0])

	switch v := value.(type) {
	case []interface{}:
		groups := make(map[string][]interface{})

		for _, item := range v {
			key := ToString(extractAttribute(item, attrName))
			groups[key] = append(groups[key], item)
		}

		// Convert to list of [key, items] pairs
		var result [][]interface{}
		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			result = append(result, []interface{}{key, groups[key]})
		}

		return result, nil

	default:
		return nil, fmt.Errorf("groupby filter requires a sequence")
	}
}

// ToJSONFilter converts value to JSON string.
// Returns a SafeValue to prevent HTML auto-escaping, matching Jinja2's
// tojson behavior which returns Markup. This is necessary for safe
// embedding of JSON in <script> blocks where HTML entities are not decoded.
func ToJSONFilter(value interface{}, args ...interface{}) (interface{}, error) {
	indent := 0
	if len(args) > 0 {
		i, err := ToInt(args[0])
		if err == nil && i > 0 {
			indent = i
		}
	}

	var data []byte
	var err error

	if indent > 0 {
		data, err = json.MarshalIndent(value, "", strings.Repeat(" ", indent))
	} else {
		data, err = json.Marshal(value)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to convert to JSON: %v", err)
	}

	return runtime.SafeValue{Value: string(data)}, nil
}

// FromJSONFilter parses JSON string to value
func FromJSONFilter(value interface{}, args ...interface{}) (interface{}, error) {
	s := ToString(value)
	if s == "" {
		return nil, nil
	}

	var result interface{}
	err := json.Unmarshal([]byte(s), &result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %v", err)
	}

	return result, nil
}

// Helper functions are defined in filter.go
