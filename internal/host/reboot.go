package host

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const defaultSysrqTrigger = "/proc/sysrq-trigger"

// Sysrq reboots the kernel immediately without syncing or unmounting.
type Sysrq struct {
	trigger string
	reboot  func(cmd int) error
}

// NewSysrq returns a rebooter writing to the given sysrq trigger file.
func NewSysrq(trigger string) *Sysrq {
	if trigger == "" {
		trigger = defaultSysrqTrigger
	}
	return &Sysrq{trigger: trigger, reboot: unix.Reboot}
}

// EmergencyReboot writes "b" to the sysrq trigger and falls back to the
// reboot syscall when the trigger is unavailable.
func (s *Sysrq) EmergencyReboot() error {
	err := os.WriteFile(s.trigger, []byte("b"), 0o200)
	if err == nil {
		return nil
	}
	if rerr := s.reboot(unix.LINUX_REBOOT_CMD_RESTART); rerr != nil {
		return fmt.Errorf("host: emergency reboot: sysrq: %v, syscall: %w", err, rerr)
	}
	return nil
}
