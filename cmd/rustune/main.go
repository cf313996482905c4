// Command rustune plays ProTracker MOD files on the default audio
// device, printing the triggered notes as the song advances.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/ebitengine/oto/v3"

	rustune "github.com/David-T08/Rustune"
	"github.com/David-T08/Rustune/modfile"
	"github.com/David-T08/Rustune/player"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	sampleRate := flag.Uint("rate", 44100, "output sample rate in Hz")
	volume := flag.Float64("volume", 0.8, "volume scaling in [0, 1]")
	loop := flag.Bool("loop", false, "restart the song when it plays through")
	interpolate := flag.Bool("interpolate", false, "enable linear sample interpolation")
	quiet := flag.Bool("quiet", false, "do not print note events")
	infoOnly := flag.Bool("info", false, "print module info and exit without playing")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file.mod\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		return err
	}

	m, err := modfile.Parse(data)
	if err != nil {
		return err
	}

	stream := rustune.NewStream()
	stream.SetVolume(*volume)
	stream.SetLooping(*loop)
	err = stream.LoadModule(m, rustune.LoadModuleConfig{
		SampleRate:          *sampleRate,
		LinearInterpolation: *interpolate,
	})
	if err != nil {
		return err
	}

	printModuleInfo(m, stream)
	if *infoOnly {
		return nil
	}

	queue := player.NewEventQueue(0)
	if !*quiet {
		stream.SetEventHandler(queue.Push)
	}

	p := player.New(stream, player.Config{})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		p.Stop()
	}()

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(*sampleRate),
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return err
	}
	<-ready

	p.Start()
	out := ctx.NewPlayer(p.Reader())
	out.Play()

	for out.IsPlaying() {
		drainEvents(queue, *sampleRate)
		time.Sleep(10 * time.Millisecond)
	}
	drainEvents(queue, *sampleRate)

	if err := p.Wait(); err != nil {
		return err
	}
	if n := queue.Dropped(); n > 0 {
		fmt.Fprintf(os.Stderr, "display fell behind: %d events dropped\n", n)
	}
	return out.Close()
}

func printModuleInfo(m *modfile.Module, stream *rustune.Stream) {
	info := stream.GetInfo()
	fmt.Printf("%s (%s): %d channels, %d orders, %d patterns, %d KB compiled\n",
		m.Name, m.Signature, m.NumChannels, m.SongLength, m.NumPatterns,
		info.MemoryUsage/1024)
	for i := range m.Samples {
		s := &m.Samples[i]
		if s.Name == "" && s.Length == 0 {
			continue
		}
		fmt.Printf("  %02d %-22s %6d bytes\n", i+1, s.Name, s.Length)
	}
}

func drainEvents(queue *player.EventQueue, sampleRate uint) {
	for {
		e, ok := queue.Poll()
		if !ok {
			return
		}
		seconds := float64(e.Frame) / float64(sampleRate)
		fmt.Printf("%8.2fs ch%d %s %02X vol=%02d fx=%X%02X\n",
			seconds, e.Channel, e.NoteName(), e.Sample, e.Volume, e.Effect, e.Param)
	}
}
