// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

// This file implements discovery of QDMA functions on the host and the PCI helpers
package qdma

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/jaypipes/pcidb"
	"k8s.io/klog/v2"
)

// SysfsPciDevicesPath is where PCI functions are listed
var SysfsPciDevicesPath = "/sys/bus/pci/devices"

var (
	pciDbOnce sync.Once
	pciDb     *pcidb.PCIDB
)

// lookupPciDb loads the pci.ids database once; nil when none is available
func lookupPciDb() *pcidb.PCIDB {
	pciDbOnce.Do(func() {
		db, err := pcidb.New()
		if err != nil {
			klog.V(DBG_LVL_BASIC).InfoS("qdma-util: pci.ids database not available", "err", err)
			return
		}
		pciDb = db
	})
	return pciDb
}

func pciVendorName(vendorId uint16) string {
	if db := lookupPciDb(); db != nil {
		if v, ok := db.Vendors[fmt.Sprintf("%04x", vendorId)]; ok {
			return v.Name
		}
	}
	return "Unknown Vendor"
}

func pciProductName(vendorId uint16, deviceId uint16) string {
	if db := lookupPciDb(); db != nil {
		if p, ok := db.Products[fmt.Sprintf("%04x%04x", vendorId, deviceId)]; ok {
			return p.Name
		}
	}
	return fmt.Sprintf("0x%X", deviceId)
}

type BDF struct {
	Domain   uint16 `json:"Domain"`
	Bus      uint8  `json:"Bus"`
	Device   uint8  `json:"Device"`
	Function uint8  `json:"Function"`
}

// ParseBDF accepts $domain:$bus:$dev.$func or $bus:$dev.$func, all in hex
func ParseBDF(addr string) (*BDF, error) {
	b := &BDF{}
	if err := b.addrToBDF(addr); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BDF) addrToBDF(addr string) error {
	bdfStringList := strings.Split(strings.ToLower(addr), ":")
	if len(bdfStringList) == 2 {
		bdfStringList = append([]string{"0000"}, bdfStringList...)
	}
	if len(bdfStringList) != 3 {
		return fmt.Errorf("address %q format error. Expect $domain:$bus:$dev.$func: %w", addr, ErrInvalidParam)
	}
	dfStringList := strings.Split(bdfStringList[2], ".")
	if len(dfStringList) != 2 {
		return fmt.Errorf("address %q format error. Expect $domain:$bus:$dev.$func: %w", addr, ErrInvalidParam)
	}

	var vals [4]uint64
	for i, s := range []string{bdfStringList[0], bdfStringList[1], dfStringList[0], dfStringList[1]} {
		v, err := strconv.ParseUint(s, 16, 16)
		if err != nil {
			return fmt.Errorf("address %q: %v: %w", addr, err, ErrInvalidParam)
		}
		vals[i] = v
	}
	if vals[1] > 0xFF || vals[2] > 0x1F || vals[3] > 0x7 {
		return fmt.Errorf("address %q out of range: %w", addr, ErrInvalidParam)
	}

	b.Domain = uint16(vals[0])
	b.Bus = uint8(vals[1])
	b.Device = uint8(vals[2])
	b.Function = uint8(vals[3])
	return nil
}

// String returns the sysfs form dddd:bb:dd.f
func (b *BDF) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", b.Domain, b.Bus, b.Device, b.Function)
}

// GetBdfString returns the BDF as BUS:DEV.FUN
func (b *BDF) GetBdfString() string {
	return fmt.Sprintf("%02X:%02X.%1X", b.Bus, b.Device, b.Function)
}

// Wrapper function to shorten int to hex convertion call
func hex(a any) string {
	return fmt.Sprintf("%X", a)
}

func readPcieConfig(bdf *BDF) (*PCIE_CONFIG_HDR, error) {
	path := filepath.Join(SysfsPciDevicesPath, bdf.String(), "config")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) < StructSize(PCIE_CONFIG_HDR{}) {
		return nil, fmt.Errorf("%s: short config space (%d bytes): %w", path, len(b), ErrInvalidParam)
	}
	hdr, err := parseStruct(b, PCIE_CONFIG_HDR{})
	if err != nil {
		return nil, err
	}
	klog.V(DBG_LVL_DETAIL).InfoS("qdma-util.readPcieConfig", "bdf", bdf, "vendor", hex(hdr.Vendor_ID), "device", hex(hdr.Device_ID))
	return &hdr, nil
}

// isConfigBar reports whether regs hold the QDMA config block
func isConfigBar(regs RegisterAccessor) bool {
	id := QDMA_CONFIG_BLOCK_IDENTIFIER.get(regs.ReadReg(QDMA_OFFSET_CONFIG_BLOCK_ID))
	return id == QDMA_CONFIG_BLOCK_ID
}

// findConfigBar probes the memory BARs of the function for the QDMA config block
func findConfigBar(bdf *BDF, hdr *PCIE_CONFIG_HDR) (int, *MmioRegs, error) {
	for _, bar := range hdr.memBars() {
		regs, err := OpenMmioRegs(bdf.String(), bar)
		if err != nil {
			klog.V(DBG_LVL_DETAIL).InfoS("qdma-util.findConfigBar skip", "bdf", bdf, "bar", bar, "err", err)
			continue
		}
		if isConfigBar(regs) {
			klog.V(DBG_LVL_INFO).InfoS("qdma-util.findConfigBar found", "bdf", bdf, "bar", bar)
			return bar, regs, nil
		}
		regs.Close()
	}
	return -1, nil, fmt.Errorf("%s: config block 0x%X: %w", bdf, QDMA_CONFIG_BLOCK_ID, ErrBarNotFound)
}

// OpenQdmaDev opens the QDMA function at bdf. cfg.ConfigBar selects the
// config BAR, or -1 to search for it.
func OpenQdmaDev(bdf string, cfg *Config) (*QdmaDev, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	b, err := ParseBDF(bdf)
	if err != nil {
		return nil, err
	}
	hdr, err := readPcieConfig(b)
	if err != nil {
		return nil, err
	}
	if hdr.Vendor_ID != QDMA_VENDOR_ID {
		return nil, fmt.Errorf("%s: vendor 0x%X is not a QDMA vendor: %w", b, hdr.Vendor_ID, ErrInvalidParam)
	}

	bar := cfg.ConfigBar
	var regs *MmioRegs
	if bar < 0 {
		bar, regs, err = findConfigBar(b, hdr)
		if err != nil {
			return nil, err
		}
	} else {
		regs, err = OpenMmioRegs(b.String(), bar)
		if err != nil {
			return nil, err
		}
		if !isConfigBar(regs) {
			regs.Close()
			return nil, fmt.Errorf("%s: bar %d: %w", b, bar, ErrInvalidConfigBar)
		}
	}

	d := NewQdmaDev(regs, cfg)
	d.Bdf = b
	d.Pcie = hdr
	d.ConfigBar = bar
	d.closer = regs
	return d, nil
}

// Close releases the register mapping of a device opened by OpenQdmaDev
func (d *QdmaDev) Close() error {
	if d == nil {
		return nil
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	d.regs = nil
	return err
}

// return the BDF as string BUS:DEV.FUN
func (d *QdmaDev) GetBdfString() string {
	if d.Bdf == nil {
		return ""
	}
	return d.Bdf.GetBdfString()
}

// return the Vendor Info of the PCIe device
func (d *QdmaDev) GetVendorInfo() string {
	if d.Pcie == nil {
		return "Unknown Vendor"
	}
	return pciVendorName(d.Pcie.Vendor_ID)
}

// return the Device Info of the PCIe device
func (d *QdmaDev) GetDeviceInfo() string {
	if d.Pcie == nil {
		return ""
	}
	return pciProductName(d.Pcie.Vendor_ID, d.Pcie.Device_ID)
}

func checkQdmaVendor(link string) bool {
	path := filepath.Join(SysfsPciDevicesPath, link, "vendor")
	fileBytes, err := os.ReadFile(path)
	klog.V(DBG_LVL_DETAIL).InfoS("qdma-util.checkQdmaVendor", "Link", path, "file", fileBytes)
	if err != nil {
		return false
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(string(fileBytes)), "0x"), 16, 16)
	return err == nil && v == QDMA_VENDOR_ID
}

// InitQdmaDevList opens every QDMA function on the host, keyed by BUS:DEV.FUN.
// Functions without a reachable config BAR are skipped.
func InitQdmaDevList(cfg *Config) (map[string]*QdmaDev, error) {
	devMap := make(map[string]*QdmaDev)

	links, err := os.ReadDir(SysfsPciDevicesPath)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		if !checkQdmaVendor(link.Name()) {
			continue
		}
		dev, err := OpenQdmaDev(link.Name(), cfg)
		if err != nil {
			klog.V(DBG_LVL_BASIC).InfoS("qdma-util.InitQdmaDevList skip", "Link", link.Name(), "err", err)
			continue
		}
		klog.V(DBG_LVL_INFO).InfoS("qdma-util.InitQdmaDevList Device found", "Link", link.Name(), "bar", dev.ConfigBar)
		devMap[dev.GetBdfString()] = dev
	}
	return devMap, nil
}
