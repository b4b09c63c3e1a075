// Package resources implements the Scheduler / Resource Manager: exclusive
// claims over points and paths, with block-induced transitive expansion,
// FIFO-per-user fairness, and the step-ahead allocation the Dispatcher uses
// to avoid deadlock while a vehicle advances from one drive-order step to
// the next, under a single mutex-guarded single-writer loop.
package resources
