package main

import (
	"crypto/sha256"
	"flag"
	"fmt"
	"log"
	"os"

	"dupfinder/internal/fingerprint"
)

func main() {
	image1Path := flag.String("img1", "", "Path to first image")
	image2Path := flag.String("img2", "", "Path to second image")
	flag.Parse()

	if *image1Path == "" || *image2Path == "" {
		log.Fatal("Usage: compare -img1 <path1> -img2 <path2>")
	}

	fmt.Printf("Comparing images:\n  Image 1: %s\n  Image 2: %s\n\n", *image1Path, *image2Path)

	data1, err := os.ReadFile(*image1Path)
	if err != nil {
		log.Fatalf("Failed to read image 1: %v", err)
	}

	data2, err := os.ReadFile(*image2Path)
	if err != nil {
		log.Fatalf("Failed to read image 2: %v", err)
	}

	// 1. File hash comparison (identical files)
	hash1 := sha256.Sum256(data1)
	hash2 := sha256.Sum256(data2)

	fmt.Printf("1. FILE HASH COMPARISON:\n")
	fmt.Printf("   Image 1 SHA256: %x\n", hash1)
	fmt.Printf("   Image 2 SHA256: %x\n", hash2)

	if hash1 == hash2 {
		fmt.Printf("   Result: IDENTICAL FILES\n\n")
	} else {
		fmt.Printf("   Result: different files\n\n")
	}

	// 2. Perceptual fingerprint comparison (similar images)
	fmt.Printf("2. PERCEPTUAL FINGERPRINT COMPARISON:\n")

	fp1, err := fingerprint.Extract(data1)
	if err != nil {
		log.Fatalf("Failed to fingerprint image 1: %v", err)
	}

	fp2, err := fingerprint.Extract(data2)
	if err != nil {
		log.Fatalf("Failed to fingerprint image 2: %v", err)
	}

	fmt.Printf("   Image 1 fingerprint: %016x\n", uint64(fp1))
	fmt.Printf("   Image 2 fingerprint: %016x\n", uint64(fp2))

	dist := fingerprint.Distance(fp1, fp2)
	fmt.Printf("   Hamming Distance: %d bits\n", dist)
	fmt.Printf("   Similarity: %d%%\n\n", 100-(dist*100/64))

	// 3. Summary
	fmt.Printf("SUMMARY:\n")
	switch {
	case hash1 == hash2:
		fmt.Printf("  Images are: IDENTICAL (same file)\n")
	case dist == 0:
		fmt.Printf("  Images are: IDENTICAL (same content, different files)\n")
	case dist <= 5:
		fmt.Printf("  Images are: VERY SIMILAR (would be flagged as duplicate)\n")
	case dist <= 10:
		fmt.Printf("  Images are: SIMILAR\n")
	default:
		fmt.Printf("  Images are: DIFFERENT\n")
	}
}
