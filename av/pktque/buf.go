// Package pktque provides packet buffering and filters over packet sources.
package pktque

import (
	"github.com/tyrese/avtranscode/av"
)

// Buf is a growable ring of packets in FIFO order.
//
// With a MaxSize it behaves like a live cache: the oldest packets are dropped
// once the payload bytes exceed it. With MaxSize 0 nothing is ever dropped.
type Buf struct {
	Head, Tail BufPos
	pkts       []av.Packet
	size       int
	maxsize    int
	count      int
}

func NewBuf() *Buf {
	return &Buf{
		pkts: make([]av.Packet, 64),
	}
}

func (self *Buf) SetMaxSize(size int) {
	self.maxsize = size
	self.shrink()
}

func (self *Buf) Len() int {
	return self.count
}

// Size returns the payload bytes currently held.
func (self *Buf) Size() int {
	return self.size
}

func (self *Buf) shrink() {
	if self.maxsize <= 0 {
		return
	}
	for self.size > self.maxsize && self.count > 1 {
		self.drop()
	}
}

func (self *Buf) drop() (pkt av.Packet) {
	i := int(self.Head) & (len(self.pkts) - 1)
	pkt = self.pkts[i]
	self.pkts[i] = av.Packet{}
	self.size -= len(pkt.Data)
	self.Head++
	self.count--
	return
}

func (self *Buf) grow() {
	newpkts := make([]av.Packet, len(self.pkts)*2)
	for i := self.Head; i.LT(self.Tail); i++ {
		newpkts[int(i)&(len(newpkts)-1)] = self.pkts[int(i)&(len(self.pkts)-1)]
	}
	self.pkts = newpkts
}

func (self *Buf) Push(pkt av.Packet) {
	if self.pkts == nil {
		self.pkts = make([]av.Packet, 64)
	}
	if self.count == len(self.pkts) {
		self.grow()
	}
	self.pkts[int(self.Tail)&(len(self.pkts)-1)] = pkt
	self.Tail++
	self.count++
	self.size += len(pkt.Data)
	self.shrink()
}

// Pop removes and returns the oldest packet. ok is false when empty.
func (self *Buf) Pop() (pkt av.Packet, ok bool) {
	if self.count == 0 {
		return
	}
	pkt = self.drop()
	ok = true
	return
}

func (self *Buf) Get(pos BufPos) av.Packet {
	return self.pkts[int(pos)&(len(self.pkts)-1)]
}

func (self *Buf) IsValidPos(pos BufPos) bool {
	return pos.GE(self.Head) && pos.LT(self.Tail)
}

type BufPos int

func (self BufPos) LT(pos BufPos) bool {
	return self-pos < 0
}

func (self BufPos) GE(pos BufPos) bool {
	return self-pos >= 0
}

func (self BufPos) GT(pos BufPos) bool {
	return self-pos > 0
}
