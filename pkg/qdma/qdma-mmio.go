// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

package qdma

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"
)

// MmioRegs accesses a BAR through the mmap of its sysfs resource file.
// Every access is a single aligned 32 bit load or store.
type MmioRegs struct {
	path string
	mem  []byte
}

var _ io.Closer = (*MmioRegs)(nil)

// resourcePath returns the sysfs resource file of bar on the device at bdf
func resourcePath(bdf string, bar int) string {
	return fmt.Sprintf("%s/%s/resource%d", SysfsPciDevicesPath, bdf, bar)
}

// OpenMmioRegs maps the BAR bar of the device at bdf (domain:bus:dev.fn)
func OpenMmioRegs(bdf string, bar int) (*MmioRegs, error) {
	if bar < 0 || bar >= QDMA_BAR_NUM {
		return nil, fmt.Errorf("bar %d: %w", bar, ErrInvalidConfigBar)
	}
	return MapMmioRegs(resourcePath(bdf, bar))
}

// MapMmioRegs maps the whole file at path for read and write
func MapMmioRegs(path string) (*MmioRegs, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < 4 {
		return nil, fmt.Errorf("%s: size %d too small: %w", path, info.Size(), ErrInvalidConfigBar)
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, int(info.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	klog.V(DBG_LVL_INFO).InfoS("qdma-mmio.MapMmioRegs", "path", path, "size", hex(info.Size()))
	return &MmioRegs{path: path, mem: mem}, nil
}

func (m *MmioRegs) reg(offset uint32) *uint32 {
	if offset&3 != 0 || int(offset)+4 > len(m.mem) {
		klog.Fatal(fmt.Errorf("qdma-mmio: offset 0x%X outside of %s", offset, m.path))
	}
	return (*uint32)(unsafe.Pointer(&m.mem[offset]))
}

func (m *MmioRegs) ReadReg(offset uint32) uint32 {
	return atomic.LoadUint32(m.reg(offset))
}

func (m *MmioRegs) WriteReg(offset uint32, val uint32) {
	atomic.StoreUint32(m.reg(offset), val)
}

// Size returns the mapped length in bytes
func (m *MmioRegs) Size() int {
	return len(m.mem)
}

func (m *MmioRegs) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	return err
}
