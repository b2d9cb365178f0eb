/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package layers

import (
	"fmt"
)

// ErrUnknownTag returned when a record tag is outside the known record set
type ErrUnknownTag struct {
	Offset int
	Tag    uint8
}

func (e ErrUnknownTag) Error() string {
	return fmt.Sprintf("Unknown record tag 0x%02x at offset %d", e.Tag, e.Offset)
}

// ErrTruncated returned when a record header or payload runs past the end of data
type ErrTruncated struct {
	Offset int
	Need   int
	Have   int
}

func (e ErrTruncated) Error() string {
	return fmt.Sprintf("Truncated record at offset %d: need %d bytes, have %d", e.Offset, e.Need, e.Have)
}

func withOffset(err error, off int) error {
	switch e := err.(type) {
	case ErrUnknownTag:
		e.Offset += off
		return e
	case ErrTruncated:
		e.Offset += off
		return e
	}
	return err
}
