package hahomematic

import "github.com/tonigrzb/hahomematic/types"

// Converters for the loosely typed values the legacy RPC decoder produces.

func convertParamsetDescription(raw any) types.ParamsetDescription {
	description := types.ParamsetDescription{}
	params, ok := raw.(map[string]any)
	if !ok {
		return description
	}
	for name, value := range params {
		fields, ok := value.(map[string]any)
		if !ok {
			continue
		}
		description[name] = types.ParameterDescription{
			Type:       toString(fields["TYPE"]),
			Default:    fields["DEFAULT"],
			Min:        fields["MIN"],
			Max:        fields["MAX"],
			Unit:       toString(fields["UNIT"]),
			Flags:      toInt(fields["FLAGS"]),
			Operations: toInt(fields["OPERATIONS"]),
			ValueList:  toStringSlice(fields["VALUE_LIST"]),
		}
	}
	return description
}

func toString(value any) string {
	s, _ := value.(string)
	return s
}

func toInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func toBool(value any) bool {
	b, _ := value.(bool)
	return b
}

func toStringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	list := make([]string, 0, len(raw))
	for _, entry := range raw {
		list = append(list, toString(entry))
	}
	return list
}
