package main

import (
	"fmt"
	"os"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/davesmith10/tvinterlace/internal/jpeg"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify [file]",
	Short: "Inspect JPEG header and ICC profile info",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentify,
}

func init() {
	identifyCmd.Flags().Bool("verify", false, "Also decode the file with the pure-Go decoder")
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	path := args[0]
	verify, _ := cmd.Flags().GetBool("verify")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	info, err := jpeg.GetInfo(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	fmt.Printf("File:        %s\n", path)
	fmt.Printf("Dimensions:  %d x %d\n", info.Width, info.Height)
	fmt.Printf("Components:  %d\n", info.NumComponents)
	fmt.Printf("Color space: %s\n", info.ColorSpace)
	fmt.Printf("Progressive: %t\n", info.Progressive)
	fmt.Printf("File size:   %d bytes (%.1f MB)\n", len(data), float64(len(data))/(1024*1024))

	if info.ICC != nil {
		fmt.Printf("ICC profile: %d bytes\n", len(info.ICC))
	} else {
		fmt.Println("ICC profile: none")
	}

	if verify {
		img, err := imgio.Open(path)
		if err != nil {
			return fmt.Errorf("verifying %s: %w", path, err)
		}
		b := img.Bounds()
		if b.Dx() != info.Width || b.Dy() != info.Height {
			return fmt.Errorf("verifying %s: decoded %dx%d, header says %dx%d", path, b.Dx(), b.Dy(), info.Width, info.Height)
		}
		fmt.Println("Verify:      ok")
	}

	return nil
}
