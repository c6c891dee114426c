// Package proc runs an external engine process with a line-oriented stdin and output.
package proc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrExited is returned when writing to a process that has already exited.
var ErrExited = errors.New("process exited")

// Config describes the process to start.
type Config struct {
	Name string
	Args []string

	// OnLine receives every complete output line, stdout and stderr merged.
	// It is never called concurrently.
	OnLine func(line string)
}

// Process is a running external process.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	writeM sync.Mutex
	lineM  sync.Mutex
	exited chan struct{}
	err    error
}

// Start launches the process and begins pumping its output.
func Start(config Config) (*Process, error) {
	path, err := exec.LookPath(config.Name)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", config.Name, err)
	}

	cmd := exec.Command(path, config.Args...)
	cmd.SysProcAttr = sysProcAttr()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", config.Name, err)
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		exited: make(chan struct{}),
	}

	var pumps errgroup.Group
	pumps.Go(func() error { return p.pump(stdout, config.OnLine) })
	pumps.Go(func() error { return p.pump(stderr, config.OnLine) })

	go func() {
		// output must be fully read before Wait closes the pipes
		readErr := pumps.Wait()
		p.err = errors.Join(cmd.Wait(), readErr)
		close(p.exited)
	}()

	return p, nil
}

func (p *Process) pump(r io.Reader, onLine func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	scanner.Split(ScanLines)

	for scanner.Scan() {
		if onLine == nil {
			continue
		}
		p.lineM.Lock()
		onLine(scanner.Text())
		p.lineM.Unlock()
	}
	return scanner.Err()
}

// ScanLines is a bufio.SplitFunc that treats both '\n' and '\r' as line terminators.
// Empty lines are returned as empty tokens.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// WriteLine writes line followed by a newline to the process stdin.
func (p *Process) WriteLine(line string) error {
	if !p.Running() {
		return ErrExited
	}

	p.writeM.Lock()
	defer p.writeM.Unlock()

	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		return fmt.Errorf("write %q: %w", line, err)
	}
	return nil
}

// Running reports whether the process has not exited yet.
func (p *Process) Running() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Exited is closed once the process has exited and its output was consumed.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Err returns the exit error. It is only meaningful after Exited is closed.
func (p *Process) Err() error {
	<-p.exited
	return p.err
}

// WaitFor waits up to d for the process to exit and reports whether it did.
func (p *Process) WaitFor(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.exited:
		return true
	case <-timer.C:
		return false
	}
}

// Terminate asks the process group to exit.
func (p *Process) Terminate() error {
	if !p.Running() {
		return nil
	}
	return terminateProcess(p.cmd)
}

// Kill forcibly ends the process group.
func (p *Process) Kill() error {
	if !p.Running() {
		return nil
	}
	return killProcess(p.cmd)
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}
