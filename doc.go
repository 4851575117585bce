/*
colortracker follows a single coloured object through a live camera or video
file and derives its kinematics (position, velocity and acceleration) over
time.

The root package owns frame acquisition.  A Device wraps an opened GoCV
VideoCapture and can only be owned by one Source at a time.  A Source runs the
acquisition loop on its own goroutine, hands every frame to the caller's
Callbacks for processing and recording, and throttles how often a display
frame is surfaced to a viewer.  Ownership of the Device can be moved to a new
Source with Handoff without reopening the hardware.

Per frame colour segmentation lives in the segment package, session recording
in track and the batch analysis of a finished session in kinematics.

See example code and usage in the example subdirectory.
*/
package colortracker
