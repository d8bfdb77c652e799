package main

import (
	"fmt"
	"os"
	"time"

	"acid-looper/midi"
	"acid-looper/pattern"
)

// midiprobe is a small cable-check tool: list ports, or fire a few
// notes at a port so you can hear the T-8 without starting the looper.

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "ping":
		match := "T-8"
		if len(os.Args) > 2 {
			match = os.Args[2]
		}
		ping(match)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI probe")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list          - List MIDI output ports")
	fmt.Println("  ping [port]   - Send test notes to a port (default: T-8)")
}

func listPorts() {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	ports, err := midi.Ports()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(ports) == 0 {
		fmt.Println("  none")
		return
	}
	for i, p := range ports {
		fmt.Printf("  %d: %s\n", i, p)
	}
}

func ping(match string) {
	out, err := midi.Open(match)
	if err != nil {
		fmt.Printf("Error opening port: %v\n", err)
		return
	}
	defer out.Close()
	fmt.Printf("Using output: %s\n", out.PortName())

	fmt.Println("Bass: C2 on channel 1...")
	if err := out.NoteOn(1, 36, 100); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	time.Sleep(500 * time.Millisecond)
	out.NoteOff(1, 36)

	fmt.Println("Drums: kick / snare / hat on channel 9...")
	for _, voice := range []uint8{pattern.VoiceKick, pattern.VoiceSnare, pattern.VoiceClosedHH} {
		out.NoteOn(9, voice, 110)
		out.NoteOff(9, voice)
		time.Sleep(250 * time.Millisecond)
	}

	fmt.Println("Done!")
}
