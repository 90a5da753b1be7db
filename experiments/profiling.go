package experiments

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"runtime/pprof"
)

var cpuProfile *os.File

func startProfiling() {
	if cpuprofile == "" {
		return
	}
	if err := os.MkdirAll(saveFile, os.ModePerm); err != nil {
		fmt.Println("could not create the save folder: ", err)
		return
	}
	cpuProfPath := path.Join(saveFile, cpuprofile)
	fmt.Println("Profiling CPU to ", cpuProfPath)
	f, err := os.Create(cpuProfPath)
	if err != nil {
		fmt.Println("could not create CPU profile: ", err)
		return
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		fmt.Println("could not start CPU profile: ", err)
		f.Close()
		return
	}
	cpuProfile = f
}

// stopProfiling ends the cpu profile and writes the heap profile
func stopProfiling() {
	if cpuProfile != nil {
		pprof.StopCPUProfile()
		cpuProfile.Close()
		cpuProfile = nil
	}

	if memprofile != "" {
		memProfPath := path.Join(saveFile, memprofile)
		fmt.Println("Profiling Memory to ", memProfPath)
		f, err := os.Create(memProfPath)
		if err != nil {
			fmt.Println("could not create memory profile: ", err)
			return
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Println("could not write memory profile: ", err)
		}
	}
}
