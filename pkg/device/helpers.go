package device

import (
	"github.com/lely-tools/dcftools/pkg/dtype"
	"github.com/lely-tools/dcftools/pkg/value"
)

// subObjValueAsUint resolves a SubObject's current Value against env and
// returns it as an unsigned 32-bit word (the common case for COB-IDs,
// mapping words, and small integer fields).
func subObjValueAsUint(sub *SubObject, env value.Env) (uint32, error) {
	n, err := sub.Value.Resolve(env)
	if err != nil {
		return 0, newFault(FaultValue, sectionName(sub.ParentIndex), sub.Name, "%v", err)
	}
	return uint32(n), nil
}

func subU8(obj *Object, subIndex uint8, env value.Env) (uint8, error) {
	sub, ok := obj.Sub(subIndex)
	if !ok {
		return 0, newFault(FaultKey, sectionName(obj.Index), "", "missing sub-index %d", subIndex)
	}
	n, err := subObjValueAsUint(sub, env)
	if err != nil {
		return 0, err
	}
	return uint8(n), nil
}

func subU8IfPresent(obj *Object, subIndex uint8, n uint8, minN uint8, env value.Env) (*uint8, error) {
	if n < minN {
		return nil, nil
	}
	sub, ok := obj.Sub(subIndex)
	if !ok {
		return nil, nil
	}
	w, err := subObjValueAsUint(sub, env)
	if err != nil {
		return nil, err
	}
	v := uint8(w)
	return &v, nil
}

func subU16IfPresent(obj *Object, subIndex uint8, n uint8, minN uint8, env value.Env) (*uint16, error) {
	if n < minN {
		return nil, nil
	}
	sub, ok := obj.Sub(subIndex)
	if !ok {
		return nil, nil
	}
	w, err := subObjValueAsUint(sub, env)
	if err != nil {
		return nil, err
	}
	v := uint16(w)
	return &v, nil
}

func subU32IfPresent(obj *Object, subIndex uint8, n uint8, minN uint8, env value.Env) (*uint32, error) {
	if n < minN {
		return nil, nil
	}
	sub, ok := obj.Sub(subIndex)
	if !ok {
		return nil, nil
	}
	w, err := subObjValueAsUint(sub, env)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func valueZero(t dtype.Type) (value.Value, error) {
	return value.New(t, "")
}
