package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	rustune "github.com/David-T08/Rustune"
	"github.com/David-T08/Rustune/modfile"
)

// This simple tool plays the specified MOD track using the Ebitengine
// audio player. SPACE pauses, keys 1 and 2 audition the first two
// samples through the synthesizer.

func main() {
	flag.Parse()
	flag.Usage = func() {
		fmt.Printf("usage: go run ./cmd/ebitengine-example path/to/music.mod")
		flag.PrintDefaults()
	}
	if len(flag.Args()) < 1 {
		panic("expected at least 1 command-line argument")
	}
	filename := flag.Args()[0]

	data, err := os.ReadFile(filename)
	if err != nil {
		panic(fmt.Errorf("read MOD file: %v", err))
	}
	module, err := modfile.Parse(data)
	if err != nil {
		panic(fmt.Errorf("parsing MOD file: %v", err))
	}
	stream := rustune.NewStream()
	if err := stream.LoadModule(module, rustune.LoadModuleConfig{}); err != nil {
		panic(fmt.Sprintf("compiling MOD module: %v", err))
	}
	stream.Start()

	// Create a sound player using the Ebitengine audio context.
	// You can have multiple players, but only one audio context.
	// See Ebitengine docs to learn more.
	sampleRate := 44100
	audioContext := audio.NewContext(sampleRate)
	player, err := audioContext.NewPlayer(stream)
	if err != nil {
		panic(err)
	}

	g := &game{
		player:   player,
		filename: filename,
		paused:   true,
	}

	g.synth = rustune.NewSynthesizer(rustune.SynthesizerConfig{
		NumChannels: 2,
	})
	if err := g.synth.LoadSamples(module, rustune.LoadModuleConfig{}); err != nil {
		panic(err)
	}
	{
		player, err := audioContext.NewPlayer(g.synth)
		if err != nil {
			panic(err)
		}
		g.synthPlayer = player
	}

	if err := ebiten.RunGame(g); err != nil {
		panic(err)
	}
}

type game struct {
	player *audio.Player

	synth       *rustune.Synthesizer
	synthPlayer *audio.Player

	filename string
	paused   bool
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
		if g.player.IsPlaying() {
			g.player.Pause()
		} else {
			g.player.Play()
		}
	}

	// 428 is the period of C-5, the pitch most MOD samples are recorded at.
	if inpututil.IsKeyJustPressed(ebiten.Key1) {
		g.synth.PlayNote(0, rustune.SynthNote{
			Sample: 1,
			Period: 428,
		})
		g.synthPlayer.Rewind()
		g.synthPlayer.Play()
	}
	if inpututil.IsKeyJustPressed(ebiten.Key2) {
		g.synth.PlayNote(0, rustune.SynthNote{
			Sample: 2,
			Period: 428,
		})
		g.synthPlayer.Rewind()
		g.synthPlayer.Play()
	}

	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.paused {
		ebitenutil.DebugPrint(screen, "Paused... press SPACE")
	} else {
		ebitenutil.DebugPrint(screen, fmt.Sprintf("Playing %s...", g.filename))
	}
}

func (g *game) Layout(_, _ int) (int, int) {
	return 640, 480
}
