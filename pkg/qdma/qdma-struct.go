// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

// This file defines the PCIe configuration structures used to discover QDMA functions
package qdma

// Xilinx PCIe vendor id
const QDMA_VENDOR_ID = 0x10EE

// define for PCIE config space struct
type PCIE_CLASS_CODE struct {
	Prog_if         uint8
	Sub_Class_Code  uint8
	Base_Class_Code uint8
}

type BAR struct {
	Region_Type  bitfield_1b // 1: I/O space
	Locatable    bitfield_2b // 2: 64 bit
	Prefetchable bitfield_1b
	Base_Address bitfield_28b
}

func (b *BAR) isIo() bool {
	return b.Region_Type == 1
}

func (b *BAR) is64() bool {
	return !b.isIo() && b.Locatable == 2
}

// PCIE_CONFIG_HDR is the type 0 configuration header
type PCIE_CONFIG_HDR struct {
	Vendor_ID              uint16
	Device_ID              uint16
	Command                uint16
	Status                 uint16
	Rev_ID                 uint8
	Class_Code             PCIE_CLASS_CODE
	Cache_Line_Size        uint8
	Latency_Timer          uint8
	Header_Type            uint8
	BIST                   uint8
	Base_Address_Registers [QDMA_BAR_NUM]BAR
	Cardbus_CIS_Ptr        uint32
	Subsystem_Vendor_ID    uint16
	Subsystem_ID           uint16
	Expansion_ROM_Base     uint32
	Capabilities_Ptr       uint8
	Reserved               [7]uint8
	Interrupt_Line         uint8
	Interrupt_Pin          uint8
	Min_Gnt                uint8
	Max_Lat                uint8
}

// memBars returns the indexes of the memory BARs, skipping the upper half of 64 bit BARs
func (h *PCIE_CONFIG_HDR) memBars() []int {
	var bars []int
	for i := 0; i < QDMA_BAR_NUM; i++ {
		bar := &h.Base_Address_Registers[i]
		if bar.isIo() {
			continue
		}
		bars = append(bars, i)
		if bar.is64() {
			i++
		}
	}
	return bars
}
