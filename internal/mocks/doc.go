package mocks

//go:generate mockgen -destination=blockdevice.go -package=mocks github.com/dargueta/sdfat BlockDevice,MultiBlockDevice
