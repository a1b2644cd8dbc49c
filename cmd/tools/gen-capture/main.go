// Command gen-capture writes a synthetic skeleton bridge capture that the
// recorder can play back with -replay.
package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sensor"
)

func main() {
	output := flag.String("o", "sample.jsonl", "output path")
	frames := flag.Int("n", 300, "number of frames")
	bodies := flag.Int("bodies", 2, "bodies per frame")
	indexMap := flag.Bool("index-map", true, "include a body index map in every frame")
	flag.Parse()

	dev := sensor.NewSyntheticDevice(sensor.SyntheticOptions{
		Bodies:   *bodies,
		Frames:   *frames,
		IndexMap: *indexMap,
	})
	if err := dev.Start(sensor.DefaultDeviceConfig()); err != nil {
		log.Fatalf("start synthetic sensor: %v", err)
	}
	defer dev.Close()

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create %s: %v", *output, err)
	}
	w := bufio.NewWriter(f)

	for i := 0; i < *frames; i++ {
		frame, err := dev.NextFrame(context.Background(), sensor.WaitInfinite)
		if err != nil {
			log.Fatalf("frame %d: %v", i+1, err)
		}
		w.Write(frame.Payload)
		w.WriteByte('\n')
		if (i+1)%100 == 0 {
			log.Printf("%d/%d frames", i+1, *frames)
		}
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("write %s: %v", *output, err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("close %s: %v", *output, err)
	}
	log.Printf("✓ Created: %s", *output)
}
