package reminders

import "sync"

// DisplayPolicy controls how a delivered notification is presented.
type DisplayPolicy struct {
	PlaySound  bool
	SetBadge   bool
	ShowBanner bool
	ShowList   bool
}

// DefaultDisplayPolicy shows every notification with sound and badge.
func DefaultDisplayPolicy() DisplayPolicy {
	return DisplayPolicy{PlaySound: true, SetBadge: true, ShowBanner: true, ShowList: true}
}

// Silent reports whether the policy hides the notification entirely.
func (p DisplayPolicy) Silent() bool {
	return !p.ShowBanner && !p.ShowList
}

var (
	policyOnce   sync.Once
	activePolicy = DefaultDisplayPolicy()
	policyMu     sync.RWMutex
)

// InitNotifications fixes the process-wide display policy. Only the first call
// takes effect; the policy in force is returned.
func InitNotifications(policy DisplayPolicy) DisplayPolicy {
	policyOnce.Do(func() {
		policyMu.Lock()
		activePolicy = policy
		policyMu.Unlock()
	})
	return CurrentPolicy()
}

// CurrentPolicy returns the display policy in force.
func CurrentPolicy() DisplayPolicy {
	policyMu.RLock()
	defer policyMu.RUnlock()
	return activePolicy
}
