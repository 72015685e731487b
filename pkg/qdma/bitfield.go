// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

// This file implements a bit level decoder for binary structures such as
// the PCIe configuration header. Fields are consumed in declaration order,
// least significant bit first, from a little endian byte stream.
// Fields of a bitfield_Nb type take N bits, all other integers their full size.

package qdma

import (
	"fmt"
	"io"
	"reflect"

	"k8s.io/klog/v2"
)

type bitfield_1b uint8
type bitfield_2b uint8
type bitfield_28b uint32

var bitfieldWidth = map[reflect.Type]int{
	reflect.TypeOf(bitfield_1b(0)):  1,
	reflect.TypeOf(bitfield_2b(0)):  2,
	reflect.TypeOf(bitfield_28b(0)): 28,
}

// bitSize returns the number of bits t occupies, or -1 if t cannot be decoded
func bitSize(t reflect.Type) int {
	if w, ok := bitfieldWidth[t]; ok {
		return w
	}
	switch t.Kind() {
	case reflect.Array:
		s := bitSize(t.Elem())
		if s < 0 {
			return -1
		}
		return s * t.Len()
	case reflect.Struct:
		sum := 0
		for i := 0; i < t.NumField(); i++ {
			s := bitSize(t.Field(i).Type)
			if s < 0 {
				return -1
			}
			sum += s
		}
		return sum
	case reflect.Bool,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(t.Size()) * 8
	}
	return -1
}

// StructSize returns the size in bytes of the decoded form of s
func StructSize(s any) int {
	bits := bitSize(reflect.TypeOf(s))
	if bits < 0 {
		return -1
	}
	return (bits + 7) / 8
}

type bitReader struct {
	buf []byte
	pos int // in bits
}

func (r *bitReader) read(width int) (uint64, error) {
	if r.pos+width > 8*len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	var v uint64
	for i := 0; i < width; i++ {
		bit := r.pos + i
		if r.buf[bit>>3]&(1<<(bit&7)) != 0 {
			v |= uint64(1) << i
		}
	}
	r.pos += width
	return v, nil
}

func (r *bitReader) value(v reflect.Value) error {
	if w, ok := bitfieldWidth[v.Type()]; ok {
		x, err := r.read(w)
		if err == nil && v.CanSet() {
			v.SetUint(x)
		}
		return err
	}

	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if err := r.value(v.Field(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := r.value(v.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Bool:
		x, err := r.read(8)
		if err == nil && v.CanSet() {
			v.SetBool(x != 0)
		}
		return err

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		x, err := r.read(int(v.Type().Size()) * 8)
		if err == nil && v.CanSet() {
			v.SetUint(x)
		}
		return err

	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w := int(v.Type().Size()) * 8
		x, err := r.read(w)
		if err == nil && v.CanSet() {
			v.SetInt(int64(x<<(64-w)) >> (64 - w))
		}
		return err
	}
	return fmt.Errorf("bitfield: unsupported kind %s", v.Kind())
}

// BitFieldRead decodes b into the structure pointed to by data.
// Blank and unexported fields are consumed but left untouched.
func BitFieldRead(b []byte, data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("bitfield.BitFieldRead: invalid type %T", data)
	}
	klog.V(DBG_LVL_DEEP_DETAIL).InfoS("bitfield.BitFieldRead", "type", v.Elem().Type().String(), "len", len(b))
	r := &bitReader{buf: b}
	return r.value(v.Elem())
}

// parseStruct decodes b into a copy of s
func parseStruct[T any](b []byte, s T) (T, error) {
	newStruct := s
	err := BitFieldRead(b, &newStruct)
	return newStruct, err
}
