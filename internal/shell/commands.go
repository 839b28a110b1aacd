package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rama-kairi/minios/internal/blackjack"
	"github.com/rama-kairi/minios/internal/calc"
	"github.com/rama-kairi/minios/internal/dispatch"
	minierrors "github.com/rama-kairi/minios/internal/errors"
	"github.com/rama-kairi/minios/internal/monitoring"
	"github.com/rama-kairi/minios/internal/process"
)

const echoUsage = "echo <message> > <filename>"

// commands returns the command set in the order help lists it
func (s *Shell) commands() []dispatch.Command {
	return []dispatch.Command{
		{Name: "help", Summary: "List available commands", Run: s.help},
		{Name: "ls", Summary: "List files in the working directory", Run: s.ls},
		{Name: "touch", Summary: "Create empty files", Usage: "touch <filename>...", MaxArgs: dispatch.Unlimited, Run: s.touch},
		{Name: "rm", Summary: "Delete files", Usage: "rm <filename>...", MaxArgs: dispatch.Unlimited, Run: s.rm},
		{Name: "cat", Summary: "Print file contents", Usage: "cat <filename>...", MaxArgs: dispatch.Unlimited, Run: s.cat},
		{Name: "echo", Summary: "Write a message to a file", Usage: echoUsage, MaxArgs: dispatch.Unlimited, Run: s.echo},
		{Name: "ps", Summary: "List started processes", Run: s.ps},
		{Name: "run", Summary: "Start a script in the background", Usage: "run <script>", MinArgs: 1, MaxArgs: 1, Run: s.run},
		{Name: "kill", Summary: "Terminate a started process", Usage: "kill <pid>", MinArgs: 1, MaxArgs: 1, Run: s.kill},
		{Name: "cpu", Summary: "Show CPU usage", Run: s.cpu},
		{Name: "memory", Summary: "Show memory usage", Run: s.memory},
		{Name: "uptime", Summary: "Show time since MiniOS started", Run: s.uptime},
		{Name: "calc", Summary: "Evaluate an arithmetic expression", Run: s.calc},
		{Name: "blackjack", Summary: "Play blackjack", Run: s.blackjack},
		{Name: "history", Summary: "Show entered commands", Run: s.showHistory},
		{Name: "logout", Summary: "Log out the current user", Run: s.logout},
		{Name: "delete_users", Summary: "Delete every registered user", Run: s.deleteUsers},
		{Name: "exit", Summary: "Shut down MiniOS", Run: s.exitCommand},
	}
}

// detail is the underlying reason of a collaborator failure
func detail(err error) string {
	var me *minierrors.MiniError
	if errors.As(err, &me) && me.Cause != nil {
		return me.Cause.Error()
	}
	return minierrors.UserMessage(err)
}

func (s *Shell) help(args []string) error {
	s.console.Println(s.styles.header.Render("Available commands:"))
	for _, cmd := range s.dispatcher.Table().Commands() {
		s.console.Printf("  %-14s%s\n", cmd.Name, s.styles.dim.Render(cmd.Summary))
	}
	return nil
}

func (s *Shell) ls(args []string) error {
	entries, err := s.files.List(context.Background())
	if err != nil {
		return err
	}

	s.console.Println("Listing files:")
	for _, entry := range entries {
		s.console.Println(entry.Name)
	}
	return nil
}

// touch, rm and cat report each file on its own line and keep going

func (s *Shell) touch(args []string) error {
	ctx := context.Background()
	for _, name := range args {
		if _, err := s.files.Touch(ctx, name); err != nil {
			s.console.Printf("Error creating file '%s': %s\n", name, detail(err))
			continue
		}
		s.console.Printf("Created file '%s'\n", name)
	}
	return nil
}

func (s *Shell) rm(args []string) error {
	ctx := context.Background()
	for _, name := range args {
		err := s.files.Remove(ctx, name)
		switch {
		case err == nil:
			s.console.Printf("Deleted file '%s'\n", name)
		case minierrors.Is(err, minierrors.ErrCodeNotFound):
			s.console.Println(minierrors.UserMessage(err))
		default:
			s.console.Printf("Error deleting file '%s': %s\n", name, detail(err))
		}
	}
	return nil
}

func (s *Shell) cat(args []string) error {
	ctx := context.Background()
	for _, name := range args {
		data, err := s.files.Read(ctx, name)
		switch {
		case err == nil:
			s.console.Println(string(data))
		case minierrors.Is(err, minierrors.ErrCodeNotFound):
			s.console.Println(minierrors.UserMessage(err))
		default:
			s.console.Printf("Error reading file '%s': %s\n", name, detail(err))
		}
	}
	return nil
}

func (s *Shell) echo(args []string) error {
	if len(args) < 3 || args[len(args)-2] != ">" {
		return minierrors.Validation("Usage: " + echoUsage)
	}

	message := strings.Join(args[:len(args)-2], " ")
	name := args[len(args)-1]

	if err := s.files.Write(context.Background(), name, message); err != nil {
		s.console.Printf("Error writing to file '%s': %s\n", name, detail(err))
		return nil
	}
	s.console.Printf("Message written to '%s'\n", name)
	return nil
}

func (s *Shell) ps(args []string) error {
	snapshots := s.supervisor.List()
	if len(snapshots) == 0 {
		s.console.Println("No running processes.")
		return nil
	}

	s.console.Println(s.styles.header.Render("PID   Command"))
	for _, snap := range snapshots {
		line := fmt.Sprintf("%d   %s", snap.PID, snap.Command())
		if snap.State == process.StateExited {
			line += s.styles.dim.Render(fmt.Sprintf(" (exited, code %d)", snap.ExitCode))
		}
		s.console.Println(line)
	}
	return nil
}

func (s *Shell) run(args []string) error {
	h, err := s.supervisor.Spawn(args[0])
	if err != nil {
		return err
	}
	s.console.Printf("Started process with PID %d\n", h.PID)
	return nil
}

func (s *Shell) kill(args []string) error {
	pid, err := s.supervisor.Terminate(args[0])
	if err != nil {
		return err
	}
	s.console.Printf("Terminated process with PID %d\n", pid)
	return nil
}

func (s *Shell) cpu(args []string) error {
	percent, err := s.monitor.CPUPercent()
	if err != nil {
		s.console.Printf("Error retrieving CPU usage: %s\n", err)
		return nil
	}
	s.console.Printf("CPU Usage: %s%%\n", monitoring.FormatPercent(percent))
	return nil
}

func (s *Shell) memory(args []string) error {
	percent, err := s.monitor.MemoryPercent()
	if err != nil {
		s.console.Printf("Error retrieving memory usage: %s\n", err)
		return nil
	}
	s.console.Printf("Memory Usage: %s%%\n", monitoring.FormatPercent(percent))
	return nil
}

func (s *Shell) uptime(args []string) error {
	s.console.Printf("System Uptime: %s\n", monitoring.FormatUptime(s.monitor.Uptime()))
	return nil
}

// Nested prompts treat end of input as a cancel; the main loop then sees
// the same end of input and exits.

func (s *Shell) calc(args []string) error {
	expr, err := s.console.ReadLine("Enter expression (e.g., 5 + 3 * 2): ")
	if err != nil {
		return nil
	}

	result, err := calc.Evaluate(expr)
	if err != nil {
		s.console.Printf("Calculation error: %s\n", err)
		return nil
	}
	s.console.Printf("Result: %s\n", result)
	return nil
}

func (s *Shell) blackjack(args []string) error {
	game := blackjack.NewGame(s.dealer, s.console)
	if err := game.Play(); err != nil {
		s.logger.Debug("Blackjack ended early", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

func (s *Shell) showHistory(args []string) error {
	s.console.Println(s.styles.header.Render("Command History:"))

	entries := s.history.Entries()
	if len(entries) == 0 {
		s.console.Println("No commands entered yet.")
		return nil
	}
	for _, entry := range entries {
		s.console.Printf("%d: %s\n", entry.Sequence, entry.Text)
	}
	return nil
}

func (s *Shell) logout(args []string) error {
	user, ok := s.endSession()
	if !ok {
		s.console.Println("No user is currently logged in.")
		return nil
	}

	s.console.Printf("Logging out %s...\n", user)
	return nil
}

func (s *Shell) deleteUsers(args []string) error {
	reply, err := s.console.Confirm("Are you sure you want to delete all users? This action cannot be undone (yes/no): ")
	if err != nil {
		return nil
	}

	deleted, err := s.store.DeleteAll(reply)
	if err != nil {
		return err
	}
	if !deleted {
		s.console.Println("Action canceled.")
		return nil
	}

	s.console.Println("All users have been deleted.")
	return nil
}

func (s *Shell) exitCommand(args []string) error {
	s.exit()
	return nil
}
