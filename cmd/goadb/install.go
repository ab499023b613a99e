package main

import (
	"os"

	"github.com/cheggaaa/pb/v3"
	adb "github.com/yosemite-go/goadb"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

// runInstall streams apkPath to the device, driving a terminal progress
// bar from the bytes read off the APK file through pb's proxy reader.
func runInstall(client *adb.Adb, serial, apkPath string) {
	device := client.Device(deviceDescriptor(serial))

	f, err := os.Open(apkPath)
	if err != nil {
		kingpin.Fatalf("opening apk: %v", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		kingpin.Fatalf("statting apk: %v", err)
	}

	bar := pb.Full.Start64(info.Size())
	defer bar.Finish()

	if err := device.Install(bar.NewProxyReader(f), info.Size()); err != nil {
		kingpin.Fatalf("installing apk: %v", err)
	}
}
