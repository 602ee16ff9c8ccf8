package runtime

import (
	"fmt"
	"reflect"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// decodeReference decodes the payload stored under key in a live-action context.
// A bare string is accepted as either an id or a "pack.name" reference.
// present is false when the key is absent.
func decodeReference(liveContext map[string]any, key string) (ref domain.Reference, present bool, err error) {
	raw, ok := liveContext[key]
	if !ok || raw == nil {
		return domain.Reference{}, false, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToReferenceHook,
		WeaklyTypedInput: true,
		Result:           &ref,
	})
	if err != nil {
		return domain.Reference{}, true, err
	}
	if err := decoder.Decode(raw); err != nil {
		return domain.Reference{}, true, fmt.Errorf("invalid %s reference: %w", key, err)
	}
	return ref, true, nil
}

func stringToReferenceHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(domain.Reference{}) {
		return data, nil
	}
	s := reflect.ValueOf(data).String()
	return map[string]any{"id": s, "ref": s}, nil
}

// parentLiveActionID extracts the parent's live-action id from the context.
// The id is empty when the key is absent or carries no id.
func parentLiveActionID(liveContext map[string]any) (id string, present bool, err error) {
	ref, present, err := decodeReference(liveContext, domain.ContextKeyParent)
	if !present || err != nil {
		return "", present, err
	}
	return ref.ID, true, nil
}

// describeReference renders a payload for logs and hook events.
func describeReference(ref domain.Reference) string {
	if r, ok := ref.ResourceRef(); ok && ref.ID == "" {
		return r.String()
	}
	if ref.ID != "" {
		return ref.ID
	}
	return ref.Ref
}
