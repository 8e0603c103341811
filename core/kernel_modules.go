package core

// kernel_modules.go – the fixed-order module chain: Transaction Limits
// -> Costing -> Auth -> Node-move -> Logger/Events. Every invoke/drop/
// node-move hook fires in this order; the order is consensus-critical
// and locked down by test.

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// KernelModule observes kernel lifecycle events. Any module may abort
// the operation in progress by returning a non-nil error; modules run
// in chain order and the first error short-circuits the rest.
type KernelModule interface {
	Name() string
	OnInvokeEnter(k *Kernel, actor Actor, args InvokeArgs) error
	OnInvokeExit(k *Kernel, actor Actor, returnPayload []byte) error
	OnDropNode(k *Kernel, id NodeId) error
	OnSyscall(k *Kernel, s Syscall) error
}

// DefaultModuleChain builds the five stock modules in their required
// order.
func DefaultModuleChain(limits TransactionLimitsConfig, log *logrus.Logger) []KernelModule {
	return []KernelModule{
		NewTransactionLimitsModule(limits),
		NewCostingModule(),
		NewAuthModule(),
		NewNodeMoveModule(),
		NewLoggerModule(log),
	}
}

//---------------------------------------------------------------------
// Transaction Limits module
//---------------------------------------------------------------------

// TransactionLimitsConfig bounds per-transaction resource consumption
// that isn't priced in cost units directly: substate count, event
// count, log count.
type TransactionLimitsConfig struct {
	MaxSubstateReads  uint32
	MaxSubstateWrites uint32
	MaxEvents         uint32
	MaxLogs           uint32
}

func DefaultTransactionLimits() TransactionLimitsConfig {
	return TransactionLimitsConfig{
		MaxSubstateReads:  65_536,
		MaxSubstateWrites: 16_384,
		MaxEvents:         1_024,
		MaxLogs:           1_024,
	}
}

type transactionLimitsModule struct {
	cfg    TransactionLimitsConfig
	reads  uint32
	writes uint32
}

func NewTransactionLimitsModule(cfg TransactionLimitsConfig) KernelModule {
	return &transactionLimitsModule{cfg: cfg}
}

func (m *transactionLimitsModule) Name() string { return "TransactionLimits" }

func (m *transactionLimitsModule) OnInvokeEnter(k *Kernel, actor Actor, args InvokeArgs) error {
	return nil
}

func (m *transactionLimitsModule) OnInvokeExit(k *Kernel, actor Actor, returnPayload []byte) error {
	return nil
}

func (m *transactionLimitsModule) OnDropNode(k *Kernel, id NodeId) error { return nil }

func (m *transactionLimitsModule) OnSyscall(k *Kernel, s Syscall) error {
	switch s {
	case SyscallSubstateRead, SyscallFieldRead, SyscallKVStoreRead:
		m.reads++
		if m.reads > m.cfg.MaxSubstateReads {
			return newKernelError("TransactionLimits", fmt.Errorf("substate read limit exceeded: %d", m.cfg.MaxSubstateReads))
		}
	case SyscallSubstateWrite, SyscallFieldWrite, SyscallKVStoreWrite:
		m.writes++
		if m.writes > m.cfg.MaxSubstateWrites {
			return newKernelError("TransactionLimits", fmt.Errorf("substate write limit exceeded: %d", m.cfg.MaxSubstateWrites))
		}
	case SyscallEmitEvent:
		if uint32(len(k.events))+1 > m.cfg.MaxEvents {
			return newKernelError("TransactionLimits", fmt.Errorf("event limit exceeded: %d", m.cfg.MaxEvents))
		}
	case SyscallLog:
		if uint32(len(k.logs))+1 > m.cfg.MaxLogs {
			return newKernelError("TransactionLimits", fmt.Errorf("log limit exceeded: %d", m.cfg.MaxLogs))
		}
	}
	return nil
}

//---------------------------------------------------------------------
// Costing module
//---------------------------------------------------------------------

type costingModule struct{}

func NewCostingModule() KernelModule { return &costingModule{} }

func (m *costingModule) Name() string { return "Costing" }

func (m *costingModule) OnInvokeEnter(k *Kernel, actor Actor, args InvokeArgs) error {
	cost := SyscallCost(SyscallInvokeMethod)
	if actor.Receiver == nil {
		cost = SyscallCost(SyscallInvokeFunction)
	}
	if err := k.fee.ConsumeExecution(cost, ReasonExecution); err != nil {
		return &CostingError{Reason: "invoke", Err: err}
	}
	return nil
}

func (m *costingModule) OnInvokeExit(k *Kernel, actor Actor, returnPayload []byte) error {
	if len(returnPayload) == 0 {
		return nil
	}
	return k.fee.ConsumeMultiplied(1, uint64(len(returnPayload)), ReasonFinalization)
}

func (m *costingModule) OnDropNode(k *Kernel, id NodeId) error {
	if err := k.fee.ConsumeExecution(SyscallCost(SyscallNodeDrop), ReasonExecution); err != nil {
		return &CostingError{Reason: "drop_node", Err: err}
	}
	return nil
}

func (m *costingModule) OnSyscall(k *Kernel, s Syscall) error {
	if err := k.fee.ConsumeExecution(SyscallCost(s), ReasonExecution); err != nil {
		return &CostingError{Reason: s.String(), Err: err}
	}
	return nil
}

//---------------------------------------------------------------------
// Auth module
//---------------------------------------------------------------------

// AuthorityCheck decides whether a frame's authority reference satisfies
// a method's access rule; supplied by the resource/role-assignment
// subsystem so this module stays policy-agnostic.
type AuthorityCheck func(k *Kernel, actor Actor) (bool, error)

type authModule struct {
	check AuthorityCheck
}

func NewAuthModule() KernelModule { return &authModule{check: allowAll} }

func allowAll(k *Kernel, actor Actor) (bool, error) { return true, nil }

// WithAuthorityCheck swaps in the role-assignment subsystem's decision
// function; called once during engine wiring.
func WithAuthorityCheck(chain []KernelModule, check AuthorityCheck) {
	for _, m := range chain {
		if a, ok := m.(*authModule); ok {
			a.check = check
		}
	}
}

func (m *authModule) Name() string { return "Auth" }

func (m *authModule) OnInvokeEnter(k *Kernel, actor Actor, args InvokeArgs) error {
	ok, err := m.check(k, actor)
	if err != nil {
		return &ApplicationError{Frame: actor.Blueprint, Err: err}
	}
	if !ok {
		return &ApplicationError{Frame: actor.Blueprint, Err: fmt.Errorf("authorization denied")}
	}
	return nil
}

func (m *authModule) OnInvokeExit(k *Kernel, actor Actor, returnPayload []byte) error { return nil }
func (m *authModule) OnDropNode(k *Kernel, id NodeId) error                           { return nil }
func (m *authModule) OnSyscall(k *Kernel, s Syscall) error                            { return nil }

//---------------------------------------------------------------------
// Node-move module
//---------------------------------------------------------------------

// nodeMoveModule enforces that only nodes explicitly named in a call's
// owned/referenced sets cross a frame boundary (the kernel's Invoke
// already does the bookkeeping; this module exists as the named hook
// point other code can observe moves through, e.g. for royalty charging
// on reference passes).
type nodeMoveModule struct{}

func NewNodeMoveModule() KernelModule { return &nodeMoveModule{} }

func (m *nodeMoveModule) Name() string { return "NodeMove" }

func (m *nodeMoveModule) OnInvokeEnter(k *Kernel, actor Actor, args InvokeArgs) error {
	for id := range args.Referenced {
		if !k.isVisible(id) {
			return newKernelError("NodeMove", ErrNodeNotVisible)
		}
	}
	return nil
}

func (m *nodeMoveModule) OnInvokeExit(k *Kernel, actor Actor, returnPayload []byte) error { return nil }
func (m *nodeMoveModule) OnDropNode(k *Kernel, id NodeId) error                           { return nil }
func (m *nodeMoveModule) OnSyscall(k *Kernel, s Syscall) error                            { return nil }

//---------------------------------------------------------------------
// Logger/Events module
//---------------------------------------------------------------------

type loggerModule struct {
	log *logrus.Logger
}

func NewLoggerModule(log *logrus.Logger) KernelModule {
	if log == nil {
		log = logrus.New()
	}
	return &loggerModule{log: log}
}

func (m *loggerModule) Name() string { return "LoggerEvents" }

func (m *loggerModule) OnInvokeEnter(k *Kernel, actor Actor, args InvokeArgs) error {
	m.log.WithFields(logrus.Fields{
		"blueprint": actor.Blueprint,
		"depth":     k.Depth(),
	}).Debug("invoke enter")
	return nil
}

func (m *loggerModule) OnInvokeExit(k *Kernel, actor Actor, returnPayload []byte) error {
	m.log.WithFields(logrus.Fields{
		"blueprint": actor.Blueprint,
		"depth":     k.Depth(),
	}).Debug("invoke exit")
	return nil
}

func (m *loggerModule) OnDropNode(k *Kernel, id NodeId) error {
	m.log.WithField("node", id.String()).Debug("drop node")
	return nil
}

func (m *loggerModule) OnSyscall(k *Kernel, s Syscall) error { return nil }
