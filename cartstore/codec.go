// storefront/cartstore/codec.go

package cartstore

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
)

// recordVersion is written into every record. Records with a higher version
// were written by a newer build and are refused.
const recordVersion = 0

// ErrUnsupportedVersion is returned when a record is newer than this codec.
var ErrUnsupportedVersion = errors.New("cartstore: unsupported record version")

// Codec turns a cart into the bytes kept in Storage and back.
type Codec interface {
	Name() string
	Marshal(state cart.CartState) ([]byte, error)
	Unmarshal(data []byte) (cart.CartState, error)
}

// CodecByName returns the codec registered under name ("json" or "proto").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "proto":
		return ProtoCodec{}, nil
	default:
		return nil, errors.Errorf("cartstore: unknown codec %q", name)
	}
}

// record is the persisted layout: {"state":{"items":[...],"total":n},"version":0}.
type record struct {
	State   cart.CartState `json:"state"`
	Version int            `json:"version"`
}

// JSONCodec stores the cart as a JSON document.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(state cart.CartState) ([]byte, error) {
	data, err := json.Marshal(record{State: state, Version: recordVersion})
	if err != nil {
		return nil, errors.Wrap(err, "cartstore: encode json record")
	}
	return data, nil
}

func (JSONCodec) Unmarshal(data []byte) (cart.CartState, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return cart.CartState{}, errors.Wrap(err, "cartstore: decode json record")
	}
	if r.Version > recordVersion {
		return cart.CartState{}, errors.Wrapf(ErrUnsupportedVersion, "version %d", r.Version)
	}
	if r.State.Items == nil {
		r.State.Items = []cart.CartItem{}
	}
	return r.State, nil
}

// ProtoCodec stores the same document as a binary protobuf Struct. Prices are
// kept as decimal strings so nothing is lost to floating point.
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return "proto" }

func (ProtoCodec) Marshal(state cart.CartState) ([]byte, error) {
	items := make([]any, 0, len(state.Items))
	for _, it := range state.Items {
		items = append(items, map[string]any{
			"id":       string(it.ID),
			"title":    it.Title,
			"price":    it.Price.String(),
			"image":    it.Image,
			"quantity": it.Quantity,
		})
	}
	st, err := structpb.NewStruct(map[string]any{
		"state": map[string]any{
			"items": items,
			"total": state.Total.String(),
		},
		"version": recordVersion,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cartstore: build proto record")
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return nil, errors.Wrap(err, "cartstore: encode proto record")
	}
	return data, nil
}

func (ProtoCodec) Unmarshal(data []byte) (cart.CartState, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return cart.CartState{}, errors.Wrap(err, "cartstore: decode proto record")
	}
	fields := st.GetFields()
	if v := int(fields["version"].GetNumberValue()); v > recordVersion {
		return cart.CartState{}, errors.Wrapf(ErrUnsupportedVersion, "version %d", v)
	}

	state := fields["state"].GetStructValue().GetFields()
	values := state["items"].GetListValue().GetValues()
	out := cart.CartState{Items: make([]cart.CartItem, 0, len(values))}
	for _, v := range values {
		f := v.GetStructValue().GetFields()
		price, err := parseDecimal(f["price"].GetStringValue())
		if err != nil {
			return cart.CartState{}, errors.Wrapf(err, "cartstore: price of item %q", f["id"].GetStringValue())
		}
		out.Items = append(out.Items, cart.CartItem{
			ID:       cart.ID(f["id"].GetStringValue()),
			Title:    f["title"].GetStringValue(),
			Price:    price,
			Image:    f["image"].GetStringValue(),
			Quantity: int(f["quantity"].GetNumberValue()),
		})
	}
	total, err := parseDecimal(state["total"].GetStringValue())
	if err != nil {
		return cart.CartState{}, errors.Wrap(err, "cartstore: total")
	}
	out.Total = total
	return out, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
