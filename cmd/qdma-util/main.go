// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Seagate/qdma-lib/pkg/qdma"
	"github.com/rcrowley/go-metrics"

	"k8s.io/klog/v2"
)

var Version = "1.0.0"

// This variable is filled in during the linker step - -ldflags "-X main.buildTime=`date -u '+%Y-%m-%dT%H:%M:%S'`"
var buildTime = ""

var helptxt = `
qdma-util is a command line tool to discover QDMA CPM devices and access their queue contexts.

Usage:
./qdma-util [--version] [--help] [--list] [--PCIE=BUS:DEV.FUN] [--sim] [--config=file]
            [--attr] [--init] [--csr] [--ctx=kind --op=read --qid=0 [--c2h] [--data=json]]
            [--queue --qid=0 [--st] [--c2h]] [--metrics] [--verbosity=0]

Which:
	version            : Print the version of this application and exit
	help               : Print the help text and exit
	list               : List all QDMA devices on the host
	PCIE=BUS[:DEV.FUN] : Select the QDMA device at the BUS:DEV.FUN
	sim                : Use a simulated device instead of the hardware
	config=file        : Load the yaml configuration file
	attr               : Print the device attributes
	init               : Clear the context memory of every queue
	csr                : Program the default global CSRs and print them
	ctx=kind           : Access a context: sw, hw, credit, pfetch, cmpt, intr, qid2vec, fmap
	op=access          : Access type: read, write, clear, invalidate. Default read
	qid=N              : Queue id, ring index for intr, function id for fmap
	c2h                : Select the C2H direction, H2C otherwise
	data=json          : Context record for a write, as printed by a read
	queue              : Print all contexts of the queue selected by --qid
	st                 : The queue is in streaming mode. Use with --queue
	metrics            : Print the access counters of the device
	verbosity          : Set the log level verbosity, where 0 is no longing and 4 is very verbose
`

const (
	DefaultVerbosity = "0" // Default log level
)

type Settings struct {
	Version   bool   // Print the version of this application and exit if true
	Verbosity string // The log level verbosity, where 0 is no longing and 4 is very verbose
	Help      bool   // Print the help text and exit
	List      bool   // List all QDMA devices on the host
	PCIE      string // Selected device
	Sim       bool   // Use a simulated device
	Config    string // yaml configuration file
	Attr      bool   // Print the device attributes
	Init      bool   // Clear the context memory
	Csr       bool   // Program the default global CSRs
	Ctx       string // Context kind to access
	Op        string // Access type
	Qid       uint   // Queue, ring or function id
	C2h       bool   // C2H direction
	Data      string // Record to write in json
	Queue     bool   // Print all contexts of a queue
	St        bool   // Streaming queue
	Metrics   bool   // Print the access counters
}

// InitFlags: initialize the configuration data using command line args, ENV, or a file
func (s *Settings) InitContext(args []string, ctx context.Context) (error, context.Context) {

	newContext := ctx

	flags := flag.NewFlagSet(args[0], flag.ExitOnError)

	var (
		version   = flags.Bool("version", false, "Display version and exit")
		verbosity = flags.String("verbosity", DefaultVerbosity, "Log level verbosity")
		help      = flags.Bool("help", false, "Print the help text")
		list      = flags.Bool("list", false, "List all QDMA devices on the host")
		pcie      = flags.String("PCIE", "", "Select the QDMA device on the BUS value inputed")
		sim       = flags.Bool("sim", false, "Use a simulated device")
		config    = flags.String("config", "", "Load the yaml configuration file")
		attr      = flags.Bool("attr", false, "Print the device attributes")
		initCtxt  = flags.Bool("init", false, "Clear the context memory of every queue")
		csr       = flags.Bool("csr", false, "Program the default global CSRs")
		ctxt      = flags.String("ctx", "", "Context kind to access")
		op        = flags.String("op", "read", "Access type: read, write, clear, invalidate")
		qid       = flags.Uint("qid", 0, "Queue id, ring index or function id")
		c2h       = flags.Bool("c2h", false, "Select the C2H direction")
		data      = flags.String("data", "", "Context record for a write, in json")
		queue     = flags.Bool("queue", false, "Print all contexts of a queue")
		st        = flags.Bool("st", false, "The queue is in streaming mode")
		metricsF  = flags.Bool("metrics", false, "Print the access counters of the device")
	)

	// Parse 1) command line arguments, 2) config file settings, and 3) defaults (in this order)
	err := flags.Parse(args[1:])
	if err != nil {
		return err, newContext
	}

	// Update the configuration object with the parsed values
	s.Version = *version
	s.Verbosity = *verbosity
	s.Help = *help
	s.List = *list
	s.PCIE = *pcie
	s.Sim = *sim
	s.Config = *config
	s.Attr = *attr
	s.Init = *initCtxt
	s.Csr = *csr
	s.Ctx = *ctxt
	s.Op = *op
	s.Qid = *qid
	s.C2h = *c2h
	s.Data = *data
	s.Queue = *queue
	s.St = *st
	s.Metrics = *metricsF

	if len(args) == 1 {
		s.Help = true
	}

	return nil, newContext
}

func PrintTableToStdout(table any, prefix, indent string) {
	s, _ := json.MarshalIndent(table, prefix, indent)
	fmt.Print(string(s), "\n")
}

func exitOnError(msg string, err error) {
	if err != nil {
		fmt.Printf("ERROR: %s, err=%v code=%d\n", msg, err, qdma.ErrorCode(err))
		os.Exit(1)
	}
}

// ctxtAccess runs the context access selected by the settings and returns the record
func ctxtAccess(dev *qdma.QdmaDev, s *Settings) (any, error) {
	access, err := qdma.ParseHwAccessType(s.Op)
	if err != nil {
		return nil, err
	}
	if s.Qid > qdma.QDMA_CPM_MAX_QID {
		return nil, fmt.Errorf("qid %d: %w", s.Qid, qdma.ErrInvalidParam)
	}
	id := uint16(s.Qid)

	load := func(rec any) error {
		if access != qdma.QDMA_HW_ACCESS_WRITE {
			return nil
		}
		if s.Data == "" {
			return fmt.Errorf("--data is required for a write: %w", qdma.ErrInvalidParam)
		}
		return json.Unmarshal([]byte(s.Data), rec)
	}

	switch qdma.CtxtKind(s.Ctx) {
	case qdma.QDMA_CTXT_SW:
		rec := &qdma.SwCtxt{}
		if err := load(rec); err != nil {
			return nil, err
		}
		return rec, dev.SwCtxConf(s.C2h, id, rec, access)
	case qdma.QDMA_CTXT_HW:
		rec := &qdma.HwCtxt{}
		return rec, dev.HwCtxConf(s.C2h, id, rec, access)
	case qdma.QDMA_CTXT_CREDIT:
		rec := &qdma.CreditCtxt{}
		return rec, dev.CreditCtxConf(s.C2h, id, rec, access)
	case qdma.QDMA_CTXT_PFETCH:
		rec := &qdma.PrefetchCtxt{}
		if err := load(rec); err != nil {
			return nil, err
		}
		return rec, dev.PfetchCtxConf(id, rec, access)
	case qdma.QDMA_CTXT_CMPT:
		rec := &qdma.CmptCtxt{}
		if err := load(rec); err != nil {
			return nil, err
		}
		return rec, dev.CmptCtxConf(id, rec, access)
	case qdma.QDMA_CTXT_INTR:
		rec := &qdma.IntrCtxt{}
		if err := load(rec); err != nil {
			return nil, err
		}
		return rec, dev.IndirectIntrCtxConf(id, rec, access)
	case qdma.QDMA_CTXT_QID2VEC:
		rec := &qdma.Qid2VecCtxt{}
		if err := load(rec); err != nil {
			return nil, err
		}
		return rec, dev.Qid2VecConf(s.C2h, id, rec, access)
	case qdma.QDMA_CTXT_FMAP:
		rec := &qdma.FmapCfg{}
		if err := load(rec); err != nil {
			return nil, err
		}
		return rec, dev.FmapConf(id, rec, access)
	}
	return nil, fmt.Errorf("unknown context %q: %w", s.Ctx, qdma.ErrInvalidParam)
}

// simDevice returns a device backed by the register simulator
func simDevice(cfg *qdma.Config) *qdma.QdmaDev {
	sim := qdma.NewSimRegs()
	sim.SetDeviceAttributes(qdma.DevAttributes{
		NumPfs:    1,
		NumQs:     16,
		StEn:      true,
		MmEn:      true,
		MailboxEn: true,
	})
	sim.SetReg(qdma.QDMA_OFFSET_CONFIG_BLOCK_ID, qdma.QDMA_CONFIG_BLOCK_ID<<16)
	return qdma.NewQdmaDev(sim, cfg)
}

func printMetrics(dev *qdma.QdmaDev) {
	counters := map[string]int64{}
	dev.Metrics.Each(func(name string, i interface{}) {
		if c, ok := i.(metrics.Counter); ok {
			counters[name] = c.Count()
		}
	})
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("\nAccess counters:\n")
	for _, name := range names {
		fmt.Printf("%30s : %d\n", name, counters[name])
	}
}

func main() {

	// Extract settings and initialize context using command line args, config file, or defaults
	settings := Settings{}
	ctx := context.Background()
	var err error
	err, ctx = settings.InitContext(os.Args, ctx)

	if err != nil {
		fmt.Printf("ERROR: parsing parameters, err=%v\n", err)
		os.Exit(1)
	}

	// Set verbosity level according to the 'verbosity' flag
	var l klog.Level
	l.Set(settings.Verbosity)

	// qdma-util banner
	args := strings.Join(os.Args[1:], " ")
	klog.V(1).InfoS("qdma-util", "args", args)
	klog.V(2).InfoS("qdma-util", "settings", settings)

	if settings.Version {
		fmt.Println("[] qdma-util", "version", Version, "build", buildTime)
		os.Exit(0)
	}

	if settings.Help {
		fmt.Print(helptxt)
		os.Exit(0)
	}

	cfg := qdma.DefaultConfig()
	if settings.Config != "" {
		cfg, err = qdma.LoadConfig(settings.Config)
		exitOnError("loading config "+settings.Config, err)
	}
	if settings.PCIE == "" {
		settings.PCIE = cfg.Bdf
	}

	if settings.List {
		devList, err := qdma.InitQdmaDevList(cfg)
		exitOnError("listing devices", err)
		prFmt := "%12s | %20s | %20s | %4s | %6s | %3s | %3s \n"
		fmt.Printf("Print the list of QDMA devs. Total devices found: %d\n", len(devList))
		fmt.Printf(prFmt, "BUS:DEV.FUN", "Vendor", "Device", "BAR", "Queues", "ST", "MM")
		for _, dev := range devList {
			vendorName := dev.GetVendorInfo()
			if len(vendorName) > 17 {
				vendorName = vendorName[:17] + "..."
			}
			deviceName := dev.GetDeviceInfo()
			if len(deviceName) > 17 {
				deviceName = deviceName[:17] + "..."
			}
			attr, err := dev.GetDeviceAttributes()
			if err != nil {
				attr = &qdma.DevAttributes{}
			}
			fmt.Printf(prFmt, dev.GetBdfString(), vendorName, deviceName, fmt.Sprint(dev.ConfigBar),
				fmt.Sprint(attr.NumQs), fmt.Sprint(attr.StEn), fmt.Sprint(attr.MmEn))
			dev.Close()
		}
	}

	var dev *qdma.QdmaDev
	switch {
	case settings.Sim:
		dev = simDevice(cfg)
	case settings.PCIE != "":
		pcie := settings.PCIE
		if len(strings.Split(pcie, ":")) == 1 {
			pcie = pcie + ":00.0"
		}
		dev, err = qdma.OpenQdmaDev(pcie, cfg)
		exitOnError("opening "+pcie, err)
		defer dev.Close()
	}

	needDev := settings.Attr || settings.Init || settings.Csr || settings.Ctx != "" || settings.Queue || settings.Metrics
	if dev == nil {
		if needDev {
			exitOnError("no device selected", errors.New("use --PCIE or --sim"))
		}
		return
	}

	if settings.Attr {
		attr, err := dev.GetDeviceAttributes()
		exitOnError("reading device attributes", err)
		fmt.Printf("\nDevice attributes:\n")
		PrintTableToStdout(attr, "", "   ")
	}

	if settings.Init {
		exitOnError("initializing context memory", dev.InitCtxtMemory())
		fmt.Printf("\nContext memory cleared\n")
	}

	if settings.Csr {
		exitOnError("programming global CSRs", dev.SetDefaultGlobalCsr())
		csr, err := dev.GetGlobalCsr()
		exitOnError("reading global CSRs", err)
		fmt.Printf("\nGlobal CSRs:\n")
		PrintTableToStdout(csr, "   ", "   ")
	}

	if settings.Ctx != "" {
		rec, err := ctxtAccess(dev, &settings)
		exitOnError(fmt.Sprintf("%s %s context %d", settings.Op, settings.Ctx, settings.Qid), err)
		if settings.Op == "read" {
			fmt.Printf("\n%s context %d:\n", strings.ToUpper(settings.Ctx), settings.Qid)
			PrintTableToStdout(rec, "   ", "   ")
		} else {
			fmt.Printf("\n%s %s context %d done\n", settings.Op, settings.Ctx, settings.Qid)
		}
	}

	if settings.Queue {
		if settings.Qid > qdma.QDMA_CPM_MAX_QID {
			exitOnError("reading queue context", fmt.Errorf("qid %d: %w", settings.Qid, qdma.ErrInvalidParam))
		}
		q, err := dev.ReadQueueContext(uint16(settings.Qid), settings.St, settings.C2h)
		exitOnError("reading queue context", err)
		fmt.Printf("\nQueue %d contexts:\n", settings.Qid)
		PrintTableToStdout(q, "   ", "   ")
	}

	if settings.Metrics {
		printMetrics(dev)
	}
}
