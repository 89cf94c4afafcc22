package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/pflag"

	"github.com/V4T54L/log-relay/internal/client"
	"github.com/V4T54L/log-relay/internal/domain"
)

type options struct {
	host           string
	port           int
	screenshotPort int
	interactive    bool
	connectivity   bool
	screenshot     string
	delay          time.Duration

	load        bool
	rps         int
	duration    time.Duration
	concurrency int
}

func main() {
	opts := options{}
	flags := pflag.NewFlagSet("relay-client", pflag.ContinueOnError)
	flags.StringVar(&opts.host, "host", "127.0.0.1", "relay host")
	flags.IntVarP(&opts.port, "port", "p", 9999, "relay log port")
	flags.IntVarP(&opts.screenshotPort, "screenshot-port", "s", 9998, "relay screenshot port")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "type messages to send")
	flags.BoolVarP(&opts.connectivity, "connectivity", "c", false, "just test connectivity, then exit")
	flags.StringVar(&opts.screenshot, "screenshot", "", "send FILE as one screenshot frame")
	flags.DurationVar(&opts.delay, "delay", 100*time.Millisecond, "pause between test suite messages")
	flags.BoolVar(&opts.load, "load", false, "run a rate-limited load test")
	flags.IntVar(&opts.rps, "rps", 1000, "load test lines per second")
	flags.DurationVar(&opts.duration, "duration", 30*time.Second, "load test duration")
	flags.IntVar(&opts.concurrency, "concurrency", 10, "load test connections")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ok bool
	switch {
	case opts.connectivity:
		ok = connectivityTest(ctx, opts)
	case opts.screenshot != "":
		ok = sendScreenshot(ctx, opts)
	case opts.load:
		ok = runLoad(ctx, opts)
	case opts.interactive:
		ok = interactive(ctx, opts, os.Stdin)
	default:
		ok = runSuite(ctx, opts)
	}
	if !ok {
		os.Exit(1)
	}
}

func (o options) logAddr() string {
	return net.JoinHostPort(o.host, strconv.Itoa(o.port))
}

func (o options) screenshotAddr() string {
	return net.JoinHostPort(o.host, strconv.Itoa(o.screenshotPort))
}

func banner(title string) {
	line := strings.Repeat("=", 50)
	fmt.Printf("\n%s\n%s\n%s\n\n", line, title, line)
}

func runSuite(ctx context.Context, o options) bool {
	banner(fmt.Sprintf("Testing Log Server at %s (TCP)", o.logAddr()))

	fmt.Println("Connecting to server...")
	c, err := client.DialLog(ctx, o.logAddr(), client.DefaultDialTimeout)
	if err != nil {
		fmt.Println(text.FgRed.Sprint("ERROR: " + err.Error()))
		fmt.Println("\nFailed to connect. Make sure the relay is running.")
		return false
	}
	defer c.Close()
	fmt.Print("Connected!\n\nSending test messages...\n\n")

	sent := 0
	for _, s := range client.Samples {
		fmt.Printf("  [%s] ", s.Name)
		if err := c.Send(s.Line); err != nil {
			fmt.Println(text.FgRed.Sprint("FAILED"))
			continue
		}
		fmt.Println(text.FgGreen.Sprint("sent"))
		sent++
		time.Sleep(o.delay)
	}

	banner(fmt.Sprintf("Results: %d/%d messages sent", sent, len(client.Samples)))
	return sent == len(client.Samples)
}

func interactive(ctx context.Context, o options, in io.Reader) bool {
	banner(fmt.Sprintf("Interactive Mode - Connecting to %s", o.logAddr()))

	c, err := client.DialLog(ctx, o.logAddr(), client.DefaultDialTimeout)
	if err != nil {
		fmt.Println(text.FgRed.Sprint("Failed to connect: " + err.Error()))
		return false
	}
	defer c.Close()

	levels := make([]string, len(domain.Levels))
	for i, l := range domain.Levels {
		levels[i] = strings.ToUpper(string(l))
	}
	fmt.Println("Connected!")
	fmt.Println("Type messages and press Enter to send.")
	fmt.Printf("Use format: [LEVEL] [Category] message  (levels: %s)\n", strings.Join(levels, ", "))
	fmt.Print("Type 'quit' to exit.\n\n")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return true
		}
		msg := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(msg, "quit") {
			fmt.Println("Goodbye!")
			return true
		}
		if msg == "" {
			continue
		}
		if err := c.Send(msg); err != nil {
			fmt.Println(text.FgRed.Sprint("Failed to send - connection may be lost"))
			return false
		}
	}
}

func connectivityTest(ctx context.Context, o options) bool {
	fmt.Printf("\nTesting TCP connectivity to %s...\n", o.logAddr())

	c, err := client.DialLog(ctx, o.logAddr(), client.DefaultDialTimeout)
	if err != nil {
		fmt.Println(text.FgRed.Sprint("  FAILED: Could not establish TCP connection"))
		fmt.Printf("  %v\n", err)
		return false
	}
	fmt.Println(text.FgGreen.Sprintf("  SUCCESS: Connected to %s", o.logAddr()))

	if err := c.Send(client.PingLine); err != nil {
		fmt.Println(text.FgRed.Sprint("  ERROR: Failed to send test message"))
		c.Close()
		return false
	}
	fmt.Println(text.FgGreen.Sprint("  SUCCESS: Test message delivered"))

	if err := c.Close(); err != nil {
		fmt.Printf("  Close failed: %v\n", err)
		return false
	}
	fmt.Println("  Connection closed cleanly")
	return true
}

func sendScreenshot(ctx context.Context, o options) bool {
	payload, err := os.ReadFile(o.screenshot)
	if err != nil {
		fmt.Println(text.FgRed.Sprint("ERROR: " + err.Error()))
		return false
	}

	c, err := client.DialScreenshot(ctx, o.screenshotAddr(), client.DefaultDialTimeout)
	if err != nil {
		fmt.Println(text.FgRed.Sprint("ERROR: " + err.Error()))
		return false
	}
	defer c.Close()

	capturedAt := time.Now().Format(domain.TimestampLayout)
	if err := c.Send(capturedAt, payload); err != nil {
		fmt.Println(text.FgRed.Sprint("ERROR: " + err.Error()))
		return false
	}
	fmt.Println(text.FgMagenta.Sprintf("Sent %s (%.1f KB) stamped %s", o.screenshot, float64(len(payload))/1024, capturedAt))
	return true
}

func runLoad(ctx context.Context, o options) bool {
	fmt.Printf("Starting load test on %s\n", o.logAddr())
	fmt.Printf("Concurrency: %d, Duration: %s, RPS: %d\n", o.concurrency, o.duration, o.rps)

	res, err := client.RunLoad(ctx, client.LoadOptions{
		Addr:        o.logAddr(),
		Concurrency: o.concurrency,
		Duration:    o.duration,
		RPS:         o.rps,
	})
	if err != nil {
		fmt.Println(text.FgRed.Sprint("ERROR: " + err.Error()))
		return false
	}

	fmt.Println("Load test finished.")
	fmt.Printf("Total Lines: %d\n", res.Sent+res.Errors)
	fmt.Printf("Sent: %d\n", res.Sent)
	fmt.Printf("Errors: %d\n", res.Errors)
	fmt.Printf("Actual RPS: %.2f\n", res.ActualRPS())
	return res.Errors == 0
}
